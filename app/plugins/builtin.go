package plugins

import (
	"fmt"

	"github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/factory"
	"github.com/kilianp07/microgrid-dispatch/infra/store"
)

type fileConf struct {
	Path string `json:"path"`
}

func init() {
	Stores.MustRegister("memory", func(map[string]any) (dispatch.Store, error) {
		return dispatch.NewMemoryStore(), nil
	})
	Stores.MustRegister("sqlite", func(conf map[string]any) (dispatch.Store, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return store.OpenSQLite(c.Path)
	})
}
