package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSubscription() *Subscription {
	sub := NewSubscription("My Subscription", "https://example.com/hook", []string{"issue.*"})
	secret := "12345678"
	sub.Secret = &secret
	return sub
}

func TestSubscriptionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validSubscription().Validate())
	})

	t.Run("name charset", func(t *testing.T) {
		sub := validSubscription()
		sub.Name = "bad/name"
		require.Error(t, sub.Validate())
	})

	t.Run("name length", func(t *testing.T) {
		sub := validSubscription()
		sub.Name = strings.Repeat("a", 101)
		require.Error(t, sub.Validate())
	})

	t.Run("url scheme", func(t *testing.T) {
		sub := validSubscription()
		sub.URL = "ftp://example.com/hook"
		require.Error(t, sub.Validate())
	})

	t.Run("url unparseable", func(t *testing.T) {
		sub := validSubscription()
		sub.URL = "://bad"
		require.Error(t, sub.Validate())
	})

	t.Run("short secret", func(t *testing.T) {
		sub := validSubscription()
		short := "abc"
		sub.Secret = &short
		require.Error(t, sub.Validate())
	})

	t.Run("empty events", func(t *testing.T) {
		sub := validSubscription()
		sub.Events = nil
		require.Error(t, sub.Validate())
	})

	t.Run("invalid event pattern", func(t *testing.T) {
		sub := validSubscription()
		sub.Events = []string{"a.b.c"}
		require.Error(t, sub.Validate())
	})

	t.Run("invalid retry policy", func(t *testing.T) {
		sub := validSubscription()
		sub.RetryPolicy.MaxAttempts = 0
		require.Error(t, sub.Validate())
	})

	t.Run("reserved header", func(t *testing.T) {
		sub := validSubscription()
		v := "x"
		sub.Headers = Headers{{Key: "Host", Value: &v}}
		require.Error(t, sub.Validate())
	})
}

func TestValidateEventPattern(t *testing.T) {
	for _, valid := range []string{"*", "issue.*", "issue.created", "project.archived"} {
		require.NoError(t, ValidateEventPattern(valid), valid)
	}
	for _, invalid := range []string{"", "issue", "issue.created.extra", ".created", "issue."} {
		require.Error(t, ValidateEventPattern(invalid), invalid)
	}
}

func TestMatchesPattern(t *testing.T) {
	testCases := []struct {
		pattern   string
		eventType string
		expected  bool
	}{
		{"*", "issue.created", true},
		{"issue.created", "issue.created", true},
		{"issue.*", "issue.created", true},
		{"issue.*", "project.created", false},
		{"issue.created", "issue.updated", false},
		{"project.*", "projectx.created", false},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, MatchesPattern(test.pattern, test.eventType),
			"%s vs %s", test.pattern, test.eventType)
	}
}

func TestSubscriptionMatchesAny(t *testing.T) {
	sub := validSubscription()
	sub.Events = []string{"issue.created", "project.*"}

	require.True(t, sub.MatchesAny("issue.created"))
	require.True(t, sub.MatchesAny("project.archived"))
	require.False(t, sub.MatchesAny("issue.updated"))
}

func TestRetryPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultRetryPolicy().Validate())

	bad := RetryPolicy{MaxAttempts: 11, BackoffMultiplier: 2, InitialDelayMs: 1000}
	require.Error(t, bad.Validate())

	bad = RetryPolicy{MaxAttempts: 3, BackoffMultiplier: 11, InitialDelayMs: 1000}
	require.Error(t, bad.Validate())

	bad = RetryPolicy{MaxAttempts: 3, BackoffMultiplier: 2, InitialDelayMs: 50}
	require.Error(t, bad.Validate())
}
