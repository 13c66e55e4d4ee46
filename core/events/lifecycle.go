package events

import (
	"fmt"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// Kind identifies a lifecycle transition.
type Kind int

const (
	KindCreated Kind = iota + 1
	KindUpdated
	KindDeleted
)

var kindNames = map[Kind]string{
	KindCreated: "created",
	KindUpdated: "updated",
	KindDeleted: "deleted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("events: unknown kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("events: unknown kind %q", string(b))
}

// DispatchEvent is published after a successful write to the dispatch store.
type DispatchEvent struct {
	Kind        Kind      `json:"kind"`
	MicrogridID uint64    `json:"microgrid_id"`
	DispatchID  uint64    `json:"dispatch_id"`
	Time        time.Time `json:"time"`
	// Detail holds the stored dispatch after the write. It is the zero value
	// for KindDeleted.
	Detail model.DispatchDetail `json:"detail,omitzero"`
}

// Publisher receives lifecycle events. Publish must not block.
type Publisher interface {
	Publish(DispatchEvent)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(DispatchEvent) {}
