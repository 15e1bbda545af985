package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Priority is the ordinal scheduling class for a Delivery Item. Lower values are served first.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds how a Delivery Item for this subscription is
// rescheduled on failure.
type RetryPolicy struct {
	MaxAttempts        int `json:"maxAttempts"`
	BackoffMultiplier  int `json:"backoffMultiplier"`
	InitialDelayMs     int `json:"initialDelayMs"`
}

// DefaultRetryPolicy is the policy assigned to a subscription that doesn't
// declare its own.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BackoffMultiplier: 2, InitialDelayMs: 1000}
}

// Validate enforces the retry policy bounds.
func (r RetryPolicy) Validate() error {
	if r.MaxAttempts < 1 || r.MaxAttempts > 10 {
		return NewValidationError("maxAttempts must be between 1 and 10, got %d", r.MaxAttempts)
	}
	if r.BackoffMultiplier < 1 || r.BackoffMultiplier > 10 {
		return NewValidationError("backoffMultiplier must be between 1 and 10, got %d", r.BackoffMultiplier)
	}
	if r.InitialDelayMs < 100 {
		return NewValidationError("initialDelayMs must be at least 100, got %d", r.InitialDelayMs)
	}
	return nil
}

// SubscriptionFilters narrows which mutations of a matched event type are
// actually routed to a subscription.
type SubscriptionFilters struct {
	Projects    []string `json:"projects,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
	Priorities  []string `json:"priorities,omitempty"`
	Assignees   []string `json:"assignees,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Collections []string `json:"collections,omitempty"`
}

// IsEmpty reports whether no filter dimension was declared, in which case
// the Router applies no post-pattern narrowing.
func (f SubscriptionFilters) IsEmpty() bool {
	return len(f.Projects) == 0 && len(f.Statuses) == 0 && len(f.Priorities) == 0 &&
		len(f.Assignees) == 0 && len(f.Tags) == 0 && len(f.Collections) == 0
}

// Value implements driver.Valuer so SubscriptionFilters can be stored as a
// single JSON column.
func (f SubscriptionFilters) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for SubscriptionFilters.
func (f *SubscriptionFilters) Scan(databaseValue interface{}) error {
	switch value := databaseValue.(type) {
	case string:
		return json.Unmarshal([]byte(value), f)
	case []byte:
		return json.Unmarshal(value, f)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into SubscriptionFilters", databaseValue)
	}
}

var subscriptionNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.\-]{1,100}$`)

// eventPatternPattern validates a single event pattern at creation time
//: "*", "entityKind.*" or "entityKind.leaf".
var eventPatternPattern = regexp.MustCompile(`^(\*|[A-Za-z0-9_]+\.(\*|[A-Za-z0-9_]+))$`)

// Subscription is a user-defined webhook registration.
type Subscription struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Secret      *string     `json:"secret,omitempty"`
	Events      []string    `json:"events"`
	Filters     SubscriptionFilters `json:"filters"`
	Active      bool        `json:"active"`
	RetryPolicy RetryPolicy `json:"retryPolicy"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
	Headers     Headers     `json:"headers"`
	FilterMode  PayloadFilterMode `json:"filterMode,omitempty"`

	CreateAt int64 `json:"createAt"`
	UpdateAt int64 `json:"updateAt"`

	DeliveredCount int64 `json:"deliveredCount"`
	FailedCount    int64 `json:"failedCount"`
}

// NewSubscription builds a Subscription with generated id and defaulted
// policy, ready for Validate and persistence.
func NewSubscription(name, rawURL string, events []string) *Subscription {
	now := GetMillis()
	return &Subscription{
		ID:             NewID(),
		Name:           name,
		URL:            rawURL,
		Events:         events,
		Active:         true,
		RetryPolicy:    DefaultRetryPolicy(),
		TimeoutSeconds: 30,
		Headers:        Headers{},
		CreateAt:       now,
		UpdateAt:       now,
	}
}

// ValidateEventPattern enforces spec §4.4's pattern-validation rule.
func ValidateEventPattern(pattern string) error {
	if pattern == "" {
		return NewValidationError("event pattern must not be empty")
	}
	if !eventPatternPattern.MatchString(pattern) {
		return NewValidationError("invalid event pattern %q", pattern)
	}
	return nil
}

// Validate enforces the Subscription invariants of spec §3: name charset
// and length, URL parseability and scheme, non-empty event set with valid
// patterns, secret length, and header rules.
func (s *Subscription) Validate() error {
	if !subscriptionNamePattern.MatchString(s.Name) {
		return NewValidationError("name must be 1-100 characters from [A-Za-z0-9 _.-], got %q", s.Name)
	}

	parsed, err := url.Parse(s.URL)
	if err != nil {
		return NewValidationError("url is not parseable: %s", err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewValidationError("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return NewValidationError("url must include a host")
	}

	if s.Secret != nil {
		if len(*s.Secret) < 8 || len(*s.Secret) > 255 {
			return NewValidationError("secret must be 8-255 characters, got %d", len(*s.Secret))
		}
	}

	if len(s.Events) == 0 {
		return NewValidationError("events must be non-empty")
	}
	for _, pattern := range s.Events {
		if err := ValidateEventPattern(pattern); err != nil {
			return err
		}
	}

	if s.TimeoutSeconds < 1 || s.TimeoutSeconds > 120 {
		return NewValidationError("timeoutSeconds must be between 1 and 120, got %d", s.TimeoutSeconds)
	}

	if err := s.RetryPolicy.Validate(); err != nil {
		return err
	}

	if err := s.Headers.Validate(); err != nil {
		return NewValidationError("%s", err.Error())
	}

	return nil
}

// MatchesPattern reports whether a single event pattern matches the given
// event type, per the match law in spec §8 invariant 3: true iff the
// pattern is "*", equals the event type exactly, or is "k.*" where the
// event type starts with "k.".
func MatchesPattern(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == eventType {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(eventType, prefix)
	}
	return false
}

// MatchesAny reports whether any of the subscription's event patterns
// match the given event type.
func (s *Subscription) MatchesAny(eventType string) bool {
	for _, pattern := range s.Events {
		if MatchesPattern(pattern, eventType) {
			return true
		}
	}
	return false
}

// String renders a compact identity for logging, mirroring teacher's
// Subscription.String pattern.
func (s *Subscription) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.ID)
}
