package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindText(t *testing.T) {
	for _, k := range []Kind{KindCreated, KindUpdated, KindDeleted} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
		assert.Equal(t, string(b), k.String())
	}
	_, err := Kind(0).MarshalText()
	assert.Error(t, err)
	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("renamed")))
}

func TestDeletedEventOmitsDetail(t *testing.T) {
	ev := DispatchEvent{
		Kind:        KindDeleted,
		MicrogridID: 1,
		DispatchID:  7,
		Time:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"deleted","microgrid_id":1,"dispatch_id":7,"time":"2024-01-01T00:00:00Z"}`, string(b))
}
