package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	rows [][2]int64
}

func (m *memStore) RecordReading(_ context.Context, reading, volume int64) error {
	m.rows = append(m.rows, [2]int64{reading, volume})
	return nil
}

func TestStoreSink(t *testing.T) {
	st := &memStore{}
	s := StoreSink{Store: st}

	require.NoError(t, s.Publish(context.Background(), Measurement, Fields{FieldReading: 1050, FieldVolume: 0}))
	assert.Equal(t, [][2]int64{{1050, 0}}, st.rows)

	assert.Error(t, s.Publish(context.Background(), "cpu", Fields{FieldReading: 1, FieldVolume: 1}))
	assert.Error(t, s.Publish(context.Background(), Measurement, Fields{FieldReading: 1}))
	assert.Error(t, s.Publish(context.Background(), Measurement, Fields{FieldVolume: 1}))
	assert.Len(t, st.rows, 1)
}
