package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsInvalidWithoutStoreDSN(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.StoreDSN = "sqlite://file::memory:?cache=shared"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.StoreDSN = "sqlite://file::memory:?cache=shared"

	cfg.Retry.MaxAttempts = 0
	require.Error(t, cfg.Validate())

	cfg.Retry.MaxAttempts = 5
	cfg.Retry.InitialDelayMs = 10
	require.Error(t, cfg.Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	require.Equal(t, int64(250), cfg.Queue.ProcessingInterval().Milliseconds())
	require.Equal(t, int64(300000), cfg.Queue.MaxRetryDelay().Milliseconds())
	require.Equal(t, int64(30000), cfg.DeliveryTimeout().Milliseconds())
	require.Equal(t, int64(30000), cfg.ShutdownGrace().Milliseconds())
}
