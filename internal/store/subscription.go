package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

const subscriptionsTable = "Subscriptions"

var subscriptionsColumns = []string{
	"ID",
	"Name",
	"URL",
	"Secret",
	"Events",
	"Filters",
	"Active",
	"RetryMaxAttempts",
	"RetryBackoffMultiplier",
	"RetryInitialDelayMs",
	"TimeoutSeconds",
	"Headers",
	"FilterMode",
	"CreateAt",
	"UpdateAt",
	"DeliveredCount",
	"FailedCount",
}

var subscriptionsSelect = sq.Select(subscriptionsColumns...).From(subscriptionsTable)

// subscriptionRow is the flattened row shape used for sqlx scanning; the
// Subscription model's nested RetryPolicy and Filters are stored as
// separate columns/JSON blobs respectively.
type subscriptionRow struct {
	ID                     string
	Name                   string
	URL                    string
	Secret                 sql.NullString
	Events                 stringSlice
	Filters                model.SubscriptionFilters
	Active                 bool
	RetryMaxAttempts       int
	RetryBackoffMultiplier int
	RetryInitialDelayMs    int
	TimeoutSeconds         int
	Headers                model.Headers
	FilterMode             sql.NullString
	CreateAt               int64
	UpdateAt               int64
	DeliveredCount         int64
	FailedCount            int64
}

func (r *subscriptionRow) toModel() *model.Subscription {
	sub := &model.Subscription{
		ID:      r.ID,
		Name:    r.Name,
		URL:     r.URL,
		Events:  []string(r.Events),
		Filters: r.Filters,
		Active:  r.Active,
		RetryPolicy: model.RetryPolicy{
			MaxAttempts:       r.RetryMaxAttempts,
			BackoffMultiplier: r.RetryBackoffMultiplier,
			InitialDelayMs:    r.RetryInitialDelayMs,
		},
		TimeoutSeconds: r.TimeoutSeconds,
		Headers:        r.Headers,
		FilterMode:     model.PayloadFilterMode(r.FilterMode.String),
		CreateAt:       r.CreateAt,
		UpdateAt:       r.UpdateAt,
		DeliveredCount: r.DeliveredCount,
		FailedCount:    r.FailedCount,
	}
	if r.Secret.Valid {
		sub.Secret = &r.Secret.String
	}
	return sub
}

func subscriptionRowValues(sub *model.Subscription) map[string]interface{} {
	var secret interface{}
	if sub.Secret != nil {
		secret = *sub.Secret
	}
	return map[string]interface{}{
		"ID":                     sub.ID,
		"Name":                   sub.Name,
		"URL":                    sub.URL,
		"Secret":                 secret,
		"Events":                 stringSlice(sub.Events),
		"Filters":                sub.Filters,
		"Active":                 sub.Active,
		"RetryMaxAttempts":       sub.RetryPolicy.MaxAttempts,
		"RetryBackoffMultiplier": sub.RetryPolicy.BackoffMultiplier,
		"RetryInitialDelayMs":    sub.RetryPolicy.InitialDelayMs,
		"TimeoutSeconds":         sub.TimeoutSeconds,
		"Headers":                sub.Headers,
		"FilterMode":             string(sub.FilterMode),
		"CreateAt":               sub.CreateAt,
		"UpdateAt":               sub.UpdateAt,
		"DeliveredCount":         sub.DeliveredCount,
		"FailedCount":            sub.FailedCount,
	}
}

// CreateSubscription inserts a new subscription. Name uniqueness is enforced by the table's unique index;
// a violation surfaces as model.ConflictError.
func (sqlStore *SQLStore) CreateSubscription(sub *model.Subscription) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Insert(subscriptionsTable).SetMap(subscriptionRowValues(sub)))
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return model.NewConflictError("subscription name %q already exists", sub.Name)
		}
		return errors.Wrap(err, "failed to create subscription")
	}
	return nil
}

// UpdateSubscription persists changes to an existing subscription.
func (sqlStore *SQLStore) UpdateSubscription(sub *model.Subscription) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Update(subscriptionsTable).
		SetMap(subscriptionRowValues(sub)).
		Where("ID = ?", sub.ID).
		Where("DeleteAt = 0"),
	)
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return model.NewConflictError("subscription name %q already exists", sub.Name)
		}
		return errors.Wrap(err, "failed to update subscription")
	}
	return nil
}

// UpdateSubscriptionCounters persists the running delivery counters
// without touching any other field, called from the dispatcher's
// fire-and-forget audit path.
func (sqlStore *SQLStore) UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Update(subscriptionsTable).
		Set("DeliveredCount", sq.Expr("DeliveredCount + ?", deliveredDelta)).
		Set("FailedCount", sq.Expr("FailedCount + ?", failedDelta)).
		Where("ID = ?", subscriptionID),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update subscription counters")
	}
	return nil
}

// GetSubscription fetches a subscription by id, returning nil if absent
//.
func (sqlStore *SQLStore) GetSubscription(id string) (*model.Subscription, error) {
	var row subscriptionRow
	err := sqlStore.getBuilder(sqlStore.db, &row, subscriptionsSelect.Where("ID = ?", id).Where("DeleteAt = 0"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}
	return row.toModel(), nil
}

// GetSubscriptionByName fetches a subscription by its unique name (spec
// §4.3 "findByName").
func (sqlStore *SQLStore) GetSubscriptionByName(name string) (*model.Subscription, error) {
	var row subscriptionRow
	err := sqlStore.getBuilder(sqlStore.db, &row, subscriptionsSelect.Where("Name = ?", name).Where("DeleteAt = 0"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription by name")
	}
	return row.toModel(), nil
}

// GetSubscriptions fetches subscriptions matching the given filter (spec
// §6 "list subscriptions").
func (sqlStore *SQLStore) GetSubscriptions(request *model.ListSubscriptionsRequest) ([]*model.Subscription, error) {
	query := subscriptionsSelect.Where("DeleteAt = 0").OrderBy("CreateAt ASC")
	query = applyPagingFilter(query, request.Paging)

	if request.Active != nil {
		query = query.Where("Active = ?", *request.Active)
	}
	if request.NameSubstring != "" {
		query = query.Where("Name LIKE ?", "%"+request.NameSubstring+"%")
	}

	var rows []subscriptionRow
	if err := sqlStore.selectBuilder(sqlStore.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to get subscriptions")
	}

	subs := make([]*model.Subscription, 0, len(rows))
	for i := range rows {
		sub := rows[i].toModel()
		if len(request.Events) > 0 && !matchesAnyDeclaredPattern(sub, request.Events) {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// matchesAnyDeclaredPattern filters the list-subscriptions "events"
// parameter against a subscription's own declared patterns; this is a
// convenience filter for the management surface, distinct from the
// Router's mutation-time matching.
func matchesAnyDeclaredPattern(sub *model.Subscription, requested []string) bool {
	for _, want := range requested {
		for _, have := range sub.Events {
			if want == have {
				return true
			}
		}
	}
	return false
}

// CountSubscriptions returns counts of active and inactive subscriptions,
// satisfying the invariant countActive + countInactive == totalSubscriptions
//.
func (sqlStore *SQLStore) CountSubscriptions() (active, inactive int64, err error) {
	active, err = sqlStore.getCount(sq.Select("Count (*)").From(subscriptionsTable).
		Where("DeleteAt = 0").Where("Active = ?", true))
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count active subscriptions")
	}
	inactive, err = sqlStore.getCount(sq.Select("Count (*)").From(subscriptionsTable).
		Where("DeleteAt = 0").Where("Active = ?", false))
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count inactive subscriptions")
	}
	return active, inactive, nil
}

// DeleteSubscription marks the given subscription as deleted.
func (sqlStore *SQLStore) DeleteSubscription(id string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(subscriptionsTable).
		Set("DeleteAt", model.GetMillis()).
		Where("ID = ?", id).
		Where("DeleteAt = 0"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark subscription as deleted")
	}
	return nil
}
