package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/recurrence"
)

const (
	// MaxPayloadDepth bounds the nesting of objects and arrays in a payload.
	MaxPayloadDepth = 5
	// MaxPayloadBytes bounds the JSON-encoded payload size.
	MaxPayloadBytes = 50 * 1024
)

// validateDispatch checks d for storage in microgridID. The start time is
// compared with now only when checkStart is set.
func validateDispatch(d model.Dispatch, microgridID uint64, cat ComponentCatalog, now time.Time, checkStart bool) error {
	if d.Type == "" {
		return invalid("type", "must not be empty")
	}
	if d.StartTime.IsZero() {
		return invalid("start_time", "is required")
	}
	if checkStart && d.StartTime.Before(now) {
		return invalid("start_time", "%s is in the past", d.StartTime.Format(time.RFC3339))
	}
	if err := validateSelector(d.Selector, microgridID, cat); err != nil {
		return err
	}
	if err := ValidatePayload(d.Payload); err != nil {
		return err
	}
	if err := recurrence.Validate(d.Recurrence); err != nil {
		var rv *recurrence.ValidationError
		if errors.As(err, &rv) {
			return invalid("recurrence."+rv.Field, "%s", rv.Reason)
		}
		return invalid("recurrence", "%v", err)
	}
	return nil
}

func validateSelector(sel model.ComponentSelector, microgridID uint64, cat ComponentCatalog) error {
	switch s := sel.(type) {
	case nil:
		return invalid("selector", "is required")
	case model.ComponentCategory:
		if !s.Valid() {
			return invalid("selector.component_category", "unknown category %d", int(s))
		}
		return nil
	case model.ComponentIDs:
		if len(s) == 0 {
			return invalid("selector.component_ids", "must not be empty")
		}
		if cat == nil {
			return nil
		}
		var first model.ComponentCategory
		for i, id := range s {
			c, ok := cat.ComponentCategory(microgridID, id)
			if !ok {
				return invalid("selector.component_ids", "unknown component %d", id)
			}
			if i == 0 {
				first = c
				continue
			}
			if c != first {
				return invalid("selector.component_ids", "mixed component categories %s and %s", first, c)
			}
		}
		return nil
	default:
		panic("dispatch: unknown selector variant")
	}
}

// ValidatePayload enforces the size and nesting limits on a payload.
func ValidatePayload(p map[string]any) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return invalid("payload", "not encodable: %v", err)
	}
	if len(b) > MaxPayloadBytes {
		return invalid("payload", "%d bytes exceeds limit of %d", len(b), MaxPayloadBytes)
	}
	depth, err := jsonDepth(b)
	if err != nil {
		return invalid("payload", "%v", err)
	}
	if depth > MaxPayloadDepth {
		return invalid("payload", "nesting depth %d exceeds limit of %d", depth, MaxPayloadDepth)
	}
	return nil
}

// jsonDepth returns the maximum object/array nesting of a JSON document.
// The top-level object counts as depth 1.
func jsonDepth(b []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	depth, maxDepth := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return maxDepth, nil
		}
		if err != nil {
			return 0, err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			maxDepth = max(maxDepth, depth)
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
