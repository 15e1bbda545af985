package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Client is the programmatic interface to the relay's management API.
type Client struct {
	address    string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient creates a client to the relay's management API at the given
// address.
func NewClient(address string) *Client {
	return &Client{
		address:    address,
		headers:    make(map[string]string),
		httpClient: &http.Client{},
	}
}

// NewClientWithHeaders creates a client to the relay's management API at
// the given address and uses the provided headers, e.g. `Authorization`
// with the configured `apiKey`.
func NewClientWithHeaders(address string, headers map[string]string) *Client {
	return &Client{
		address:    address,
		headers:    headers,
		httpClient: &http.Client{},
	}
}

// closeBody ensures the Body of an http.Response is properly closed.
func closeBody(r *http.Response) {
	if r.Body != nil {
		_, _ = ioutil.ReadAll(r.Body)
		_ = r.Body.Close()
	}
}

func (c *Client) buildURL(urlPath string, args ...interface{}) string {
	return fmt.Sprintf("%s%s", c.address, fmt.Sprintf(urlPath, args...))
}

func (c *Client) doGet(u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) doPost(u string, request interface{}) (*http.Response, error) {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(requestBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) doPut(u string, request interface{}) (*http.Response, error) {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequest(http.MethodPut, u, bytes.NewReader(requestBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) doDelete(u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

// CreateSubscription requests the creation of a subscription.
func (c *Client) CreateSubscription(request *CreateSubscriptionRequest) (*Subscription, error) {
	resp, err := c.doPost(c.buildURL("/api/subscriptions"), request)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		return SubscriptionFromReader(resp.Body)
	default:
		return nil, errorFromReader(resp)
	}
}

// UpdateSubscription requests an update to an existing subscription (spec
// §6 "update subscription").
func (c *Client) UpdateSubscription(subscriptionID string, request *UpdateSubscriptionRequest) (*Subscription, error) {
	resp, err := c.doPut(c.buildURL("/api/subscriptions/%s", subscriptionID), request)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return SubscriptionFromReader(resp.Body)
	default:
		return nil, errorFromReader(resp)
	}
}

// GetSubscription fetches a subscription by id.
func (c *Client) GetSubscription(subscriptionID string) (*Subscription, error) {
	resp, err := c.doGet(c.buildURL("/api/subscriptions/%s", subscriptionID))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return SubscriptionFromReader(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// GetSubscriptions fetches the list of subscriptions matching the filter
//.
func (c *Client) GetSubscriptions(request *ListSubscriptionsRequest) ([]*Subscription, error) {
	u, err := url.Parse(c.buildURL("/api/subscriptions"))
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if request.Active != nil {
		q.Set("active", strconv.FormatBool(*request.Active))
	}
	if request.NameSubstring != "" {
		q.Set("name", request.NameSubstring)
	}
	for _, event := range request.Events {
		q.Add("events", event)
	}
	request.Paging.AddToQuery(q)
	u.RawQuery = q.Encode()

	resp, err := c.doGet(u.String())
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return SubscriptionsFromReader(resp.Body)
	default:
		return nil, errorFromReader(resp)
	}
}

// DeleteSubscription deletes the given subscription.
func (c *Client) DeleteSubscription(subscriptionID string) error {
	resp, err := c.doDelete(c.buildURL("/api/subscriptions/%s", subscriptionID))
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	default:
		return errorFromReader(resp)
	}
}

// TestSubscriptionDelivery synthesizes an event and routes it to only the
// given subscription, returning the dispatcher's attempt result.
func (c *Client) TestSubscriptionDelivery(subscriptionID string) (*AttemptResult, error) {
	resp, err := c.doPost(c.buildURL("/api/subscriptions/%s/test", subscriptionID), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var result AttemptResult
		if err := decodeJSON(resp.Body, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode attempt result")
		}
		return &result, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// GetDeliveries fetches the delivery history for a subscription.
func (c *Client) GetDeliveries(subscriptionID string, request *ListDeliveriesRequest) ([]*DeliveryAttemptRecord, error) {
	u, err := url.Parse(c.buildURL("/api/subscriptions/%s/deliveries", subscriptionID))
	if err != nil {
		return nil, err
	}
	request.ApplyToURL(u)

	resp, err := c.doGet(u.String())
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var records []*DeliveryAttemptRecord
		if err := decodeJSON(resp.Body, &records); err != nil {
			return nil, errors.Wrap(err, "failed to decode delivery records")
		}
		return records, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// GetSubscriptionStats aggregates delivery history for a subscription over
// the given period string.
func (c *Client) GetSubscriptionStats(subscriptionID, period string) (*SubscriptionStats, error) {
	u := c.buildURL("/api/subscriptions/%s/stats?period=%s", subscriptionID, period)
	resp, err := c.doGet(u)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var stats SubscriptionStats
		if err := decodeJSON(resp.Body, &stats); err != nil {
			return nil, errors.Wrap(err, "failed to decode subscription stats")
		}
		return &stats, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// GetDeadLetterEntries fetches dead-letter entries matching the filter
//.
func (c *Client) GetDeadLetterEntries(request *ListDeadLetterRequest) ([]*DeadLetterEntry, error) {
	u, err := url.Parse(c.buildURL("/api/deadletter"))
	if err != nil {
		return nil, err
	}
	request.ApplyToURL(u)

	resp, err := c.doGet(u.String())
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var entries []*DeadLetterEntry
		if err := decodeJSON(resp.Body, &entries); err != nil {
			return nil, errors.Wrap(err, "failed to decode dead-letter entries")
		}
		return entries, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// RetryDeadLetterEntry requests replay of a single dead-letter entry
//.
func (c *Client) RetryDeadLetterEntry(entryID string) error {
	resp, err := c.doPost(c.buildURL("/api/deadletter/%s/retry", entryID), nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return errorFromReader(resp)
	}
}

// ClearDeadLetterEntries requests removal of every dead-letter entry
//.
func (c *Client) ClearDeadLetterEntries() error {
	resp, err := c.doDelete(c.buildURL("/api/deadletter"))
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	default:
		return errorFromReader(resp)
	}
}

// GetEventCatalog fetches the static event-type catalog.
func (c *Client) GetEventCatalog() ([]EntityKindInfo, error) {
	resp, err := c.doGet(c.buildURL("/api/events/catalog"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var catalog []EntityKindInfo
		if err := decodeJSON(resp.Body, &catalog); err != nil {
			return nil, errors.Wrap(err, "failed to decode event catalog")
		}
		return catalog, nil
	default:
		return nil, errorFromReader(resp)
	}
}

// ReplayEvent re-enqueues deliveries for a past event to the given
// subscriptions.
func (c *Client) ReplayEvent(eventID string, subscriptionIDs []string) error {
	resp, err := c.doPost(c.buildURL("/api/events/%s/replay", eventID), map[string]interface{}{
		"subscriptionIds": subscriptionIDs,
	})
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return errorFromReader(resp)
	}
}

// GetHealth reports the health of every pipeline component.
func (c *Client) GetHealth() (*HealthReport, error) {
	resp, err := c.doGet(c.buildURL("/api/health"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	var report HealthReport
	if err := decodeJSON(resp.Body, &report); err != nil {
		return nil, errors.Wrap(err, "failed to decode health report")
	}
	return &report, nil
}

// errorFromReader decodes a structured APIError body into a Go
// error, falling back to a plain status-code error when decoding fails.
func errorFromReader(resp *http.Response) error {
	var apiErr APIError
	if err := decodeJSON(resp.Body, &apiErr); err == nil && apiErr.Message != "" {
		return errors.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	return errors.Errorf("failed with status code %d", resp.StatusCode)
}
