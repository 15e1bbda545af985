package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSamplerPercentile(t *testing.T) {
	s := NewSampler()
	for i := 1; i <= 100; i++ {
		s.Observe(float64(i))
	}
	require.InDelta(t, 50, s.Percentile(0.50), 2)
	require.InDelta(t, 95, s.Percentile(0.95), 2)
}

func TestSamplerEvictsOldestOnOverflow(t *testing.T) {
	s := NewSampler()
	for i := 0; i < RingBufferCap+10; i++ {
		s.Observe(float64(i))
	}
	require.Equal(t, float64(10), s.Percentile(0))
}

func TestStatisticsRecordAttempt(t *testing.T) {
	st := New()
	st.RecordAttempt(true, 10)
	st.RecordAttempt(false, 500)
	st.RecordRetry()

	snapshot := st.Snapshot()
	require.EqualValues(t, 1, snapshot.Delivery.Succeeded)
	require.EqualValues(t, 1, snapshot.Delivery.Failed)
	require.EqualValues(t, 1, snapshot.Delivery.Retried)
}
