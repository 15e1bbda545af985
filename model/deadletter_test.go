package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDeadLetterEntry(t *testing.T) {
	sub := validSubscription()
	payload := samplePayload()
	item := NewDeliveryItem(sub, payload)
	item.Attempts = 5

	entry := NewDeadLetterEntry(item, "max attempts exceeded")

	require.Equal(t, sub.ID, entry.SubscriptionID)
	require.Equal(t, payload.Event, entry.EventType)
	require.Equal(t, 5, entry.AttemptsConsumed)
	require.Equal(t, 0, entry.RetryCount)
	require.NotEmpty(t, entry.ID)
}

func TestDeadLetterEntryToRetryDelivery(t *testing.T) {
	sub := validSubscription()
	payload := samplePayload()
	item := NewDeliveryItem(sub, payload)
	item.Attempts = 5
	item.Status = DeliveryStatusDeadLettered

	entry := NewDeadLetterEntry(item, "boom")
	retried := entry.ToRetryDelivery()

	require.Equal(t, 0, retried.Attempts)
	require.Equal(t, DeliveryStatusQueued, retried.Status)
	require.True(t, retried.RetryFromDeadLetter)
	require.Empty(t, retried.LastError)

	// Original entry's delivery snapshot is untouched.
	require.Equal(t, 5, entry.Delivery.Attempts)
}
