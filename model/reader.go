package model

import "io"

// SubscriptionFromReader decodes a single Subscription from a JSON stream,
// mirroring teacher's WebhookFromReader/ClusterFromReader pattern.
func SubscriptionFromReader(reader io.Reader) (*Subscription, error) {
	var sub Subscription
	if err := decodeJSON(reader, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubscriptionsFromReader decodes a list of Subscriptions from a JSON
// stream.
func SubscriptionsFromReader(reader io.Reader) ([]*Subscription, error) {
	var subs []*Subscription
	if err := decodeJSON(reader, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}
