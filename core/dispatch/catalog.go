package dispatch

import (
	"maps"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// ComponentCatalog resolves microgrids and their components. It is used
// to reject unknown microgrids and selectors mixing component categories.
type ComponentCatalog interface {
	HasMicrogrid(microgridID uint64) bool
	ComponentCategory(microgridID, componentID uint64) (model.ComponentCategory, bool)
}

// StaticCatalog is a fixed in-memory ComponentCatalog.
type StaticCatalog struct {
	microgrids map[uint64]map[uint64]model.ComponentCategory
}

// NewStaticCatalog builds a catalog from microgrid id -> component id -> category.
func NewStaticCatalog(microgrids map[uint64]map[uint64]model.ComponentCategory) *StaticCatalog {
	c := &StaticCatalog{microgrids: make(map[uint64]map[uint64]model.ComponentCategory, len(microgrids))}
	for id, comps := range microgrids {
		c.microgrids[id] = maps.Clone(comps)
		if c.microgrids[id] == nil {
			c.microgrids[id] = map[uint64]model.ComponentCategory{}
		}
	}
	return c
}

func (c *StaticCatalog) HasMicrogrid(microgridID uint64) bool {
	_, ok := c.microgrids[microgridID]
	return ok
}

func (c *StaticCatalog) ComponentCategory(microgridID, componentID uint64) (model.ComponentCategory, bool) {
	cat, ok := c.microgrids[microgridID][componentID]
	return cat, ok
}
