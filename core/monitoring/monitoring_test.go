package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recorder struct {
	errs   []error
	panics []any
	tags   map[string]string
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}

func (r *recorder) CapturePanic(v any, tags map[string]string) {
	r.panics = append(r.panics, v)
	r.tags = tags
}

func (r *recorder) Flush(time.Duration) {}

func TestGlobalMonitor(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(NopMonitor{})
	Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "scheduler"})
	if len(rec.errs) != 1 || rec.tags["component"] != "scheduler" {
		t.Fatalf("exception not forwarded: %+v", rec)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				err := CapturePanic(r, nil)
				if err == nil || err.Error() != "panic: oops" {
					t.Fatalf("unexpected error %v", err)
				}
			}
		}()
		panic("oops")
	}()
	if len(rec.panics) != 1 {
		t.Fatalf("panic not forwarded")
	}

	cause := errors.New("cause")
	if err := CapturePanic(cause, nil); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	Flush(time.Millisecond)
}
