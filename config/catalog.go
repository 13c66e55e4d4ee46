package config

import (
	"fmt"

	"github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// CatalogConfig lists the known microgrids and their components. An empty
// catalog accepts any microgrid and component.
type CatalogConfig struct {
	Microgrids []MicrogridConfig `json:"microgrids"`
}

type MicrogridConfig struct {
	ID         uint64            `json:"id"`
	Components []ComponentConfig `json:"components"`
}

type ComponentConfig struct {
	ID       uint64 `json:"id"`
	Category string `json:"category"`
}

// Build returns the catalog described by c, or nil when c is empty.
func (c CatalogConfig) Build() (dispatch.ComponentCatalog, error) {
	if len(c.Microgrids) == 0 {
		return nil, nil
	}
	grids := make(map[uint64]map[uint64]model.ComponentCategory, len(c.Microgrids))
	for _, mg := range c.Microgrids {
		if _, dup := grids[mg.ID]; dup {
			return nil, fmt.Errorf("microgrid %d listed twice", mg.ID)
		}
		comps := make(map[uint64]model.ComponentCategory, len(mg.Components))
		for _, comp := range mg.Components {
			cat, err := model.ParseComponentCategory(comp.Category)
			if err != nil {
				return nil, fmt.Errorf("microgrid %d component %d: %w", mg.ID, comp.ID, err)
			}
			if !cat.Valid() {
				return nil, fmt.Errorf("microgrid %d component %d: category must be specified", mg.ID, comp.ID)
			}
			if _, dup := comps[comp.ID]; dup {
				return nil, fmt.Errorf("microgrid %d component %d listed twice", mg.ID, comp.ID)
			}
			comps[comp.ID] = cat
		}
		grids[mg.ID] = comps
	}
	return dispatch.NewStaticCatalog(grids), nil
}
