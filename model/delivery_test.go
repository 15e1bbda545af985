package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDeliveryItem(t *testing.T) {
	sub := validSubscription()
	sub.RetryPolicy.MaxAttempts = 3
	payload := samplePayload()

	item := NewDeliveryItem(sub, payload)

	require.Equal(t, sub.ID, item.SubscriptionID)
	require.Equal(t, payload.ID, item.EventID)
	require.Equal(t, sub.URL, item.URL)
	require.Equal(t, DeliveryStatusQueued, item.Status)
	require.Equal(t, 0, item.Attempts)
	require.Equal(t, 3, item.MaxAttempts)
	require.True(t, item.CanRetry())
	require.False(t, item.IsTerminal())
}

func TestDeliveryItemCanRetry(t *testing.T) {
	item := &DeliveryItem{Attempts: 2, MaxAttempts: 3}
	require.True(t, item.CanRetry())

	item.Attempts = 3
	require.False(t, item.CanRetry())
}

func TestDeliveryItemIsTerminal(t *testing.T) {
	item := &DeliveryItem{Status: DeliveryStatusQueued}
	require.False(t, item.IsTerminal())

	item.Status = DeliveryStatusCompleted
	require.True(t, item.IsTerminal())

	item.Status = DeliveryStatusDeadLettered
	require.True(t, item.IsTerminal())
}
