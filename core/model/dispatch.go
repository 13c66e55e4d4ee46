package model

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"time"
)

// ComponentSelector identifies the components a dispatch targets. It is
// either ComponentIDs or a ComponentCategory.
type ComponentSelector interface {
	isComponentSelector()
}

// ComponentIDs selects an explicit set of components sharing one category.
type ComponentIDs []uint64

func (ComponentIDs) isComponentSelector()      {}
func (ComponentCategory) isComponentSelector() {}

// Dispatch is a request to command a set of components, once at StartTime
// or repeatedly according to Recurrence.
type Dispatch struct {
	Type string
	// StartTime is always handled in UTC.
	StartTime time.Time
	// Duration in seconds; absent means open-ended.
	Duration   Optional[uint32]
	Selector   ComponentSelector
	IsActive   bool
	IsDryRun   bool
	Payload    map[string]any
	Recurrence *RecurrenceRule
}

// DispatchDetail wraps a stored dispatch with its server-assigned identity.
type DispatchDetail struct {
	ID               uint64    `json:"dispatch_id"`
	MicrogridID      uint64    `json:"microgrid_id"`
	Dispatch         Dispatch  `json:"dispatch"`
	CreateTime       time.Time `json:"create_time"`
	ModificationTime time.Time `json:"modification_time"`
}

// Clone returns a deep copy of d. Payload values are copied
// through a JSON round trip so nested maps are not shared.
func (d Dispatch) Clone() Dispatch {
	c := d
	c.Selector = CloneSelector(d.Selector)
	c.Recurrence = d.Recurrence.Clone()
	c.Payload = ClonePayload(d.Payload)
	return c
}

// CloneSelector deep-copies a selector.
func CloneSelector(s ComponentSelector) ComponentSelector {
	switch v := s.(type) {
	case nil:
		return nil
	case ComponentIDs:
		return slices.Clone(v)
	case ComponentCategory:
		return v
	default:
		panic("model: unknown selector variant")
	}
}

// ClonePayload deep-copies a payload through a JSON round trip.
func ClonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return maps.Clone(p)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return maps.Clone(p)
	}
	return out
}

type selectorJSON struct {
	ComponentIDs      *[]uint64          `json:"component_ids,omitempty"`
	ComponentCategory *ComponentCategory `json:"component_category,omitempty"`
}

var errSelectorVariant = errors.New("selector must set exactly one of component_ids or component_category")

func encodeSelector(s ComponentSelector) *selectorJSON {
	switch v := s.(type) {
	case nil:
		return nil
	case ComponentIDs:
		ids := []uint64(slices.Clone(v))
		if ids == nil {
			ids = []uint64{}
		}
		return &selectorJSON{ComponentIDs: &ids}
	case ComponentCategory:
		c := v
		return &selectorJSON{ComponentCategory: &c}
	default:
		panic("model: unknown selector variant")
	}
}

func decodeSelector(j *selectorJSON) (ComponentSelector, error) {
	if j == nil {
		return nil, nil
	}
	switch {
	case j.ComponentIDs != nil && j.ComponentCategory != nil, j.ComponentIDs == nil && j.ComponentCategory == nil:
		return nil, errSelectorVariant
	case j.ComponentIDs != nil:
		return ComponentIDs(*j.ComponentIDs), nil
	default:
		return *j.ComponentCategory, nil
	}
}

type dispatchJSON struct {
	Type       string           `json:"type"`
	StartTime  time.Time        `json:"start_time"`
	Duration   Optional[uint32] `json:"duration,omitzero"`
	Selector   *selectorJSON    `json:"selector,omitempty"`
	IsActive   bool             `json:"is_active"`
	IsDryRun   bool             `json:"is_dry_run"`
	Payload    map[string]any   `json:"payload,omitempty"`
	Recurrence *RecurrenceRule  `json:"recurrence,omitempty"`
}

func (d Dispatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(dispatchJSON{
		Type:       d.Type,
		StartTime:  d.StartTime.UTC(),
		Duration:   d.Duration,
		Selector:   encodeSelector(d.Selector),
		IsActive:   d.IsActive,
		IsDryRun:   d.IsDryRun,
		Payload:    d.Payload,
		Recurrence: d.Recurrence,
	})
}

func (d *Dispatch) UnmarshalJSON(b []byte) error {
	var j dispatchJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	sel, err := decodeSelector(j.Selector)
	if err != nil {
		return err
	}
	*d = Dispatch{
		Type:       j.Type,
		StartTime:  j.StartTime.UTC(),
		Duration:   j.Duration,
		Selector:   sel,
		IsActive:   j.IsActive,
		IsDryRun:   j.IsDryRun,
		Payload:    j.Payload,
		Recurrence: j.Recurrence,
	}
	return nil
}
