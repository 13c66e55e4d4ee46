// Package plugins registers the pluggable dispatch store backends.
package plugins

import (
	"io"

	"github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/factory"
)

// Stores lists the dispatch.Store backends by type name.
var Stores = factory.NewRegistry[dispatch.Store]()

// NewStore builds the backend named by typ. path is handed to backends
// that persist to disk.
func NewStore(typ, path string) (dispatch.Store, error) {
	return Stores.Create(factory.ModuleConfig{Type: typ, Conf: map[string]any{"path": path}})
}

// CloseStore releases s when the backend holds resources.
func CloseStore(s dispatch.Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
