package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

const deliveryAttemptsTable = "DeliveryAttempts"

var deliveryAttemptsColumns = []string{
	"ID",
	"DeliveryID",
	"SubscriptionID",
	"EventID",
	"AttemptNumber",
	"StartAt",
	"DurationMs",
	"Outcome",
	"HTTPStatus",
	"ErrorCategory",
	"ErrorMessage",
	"NextRetryAt",
	"ResponseBodyPrefix",
}

var deliveryAttemptsSelect = sq.Select(deliveryAttemptsColumns...).From(deliveryAttemptsTable)

type deliveryAttemptRow struct {
	ID                  string
	DeliveryID          string
	SubscriptionID      string
	EventID             string
	AttemptNumber       int
	StartAt             int64
	DurationMs          int64
	Outcome             string
	HTTPStatus          int
	ErrorCategory       string
	ErrorMessage        string
	NextRetryAt         *int64
	ResponseBodyPrefix  string
}

func (r *deliveryAttemptRow) toModel() *model.DeliveryAttemptRecord {
	return &model.DeliveryAttemptRecord{
		ID:                 r.ID,
		DeliveryID:         r.DeliveryID,
		SubscriptionID:     r.SubscriptionID,
		EventID:            r.EventID,
		AttemptNumber:      r.AttemptNumber,
		Duration:           durationFromMillis(r.DurationMs),
		StartAtMillis:      r.StartAt,
		Outcome:            model.AttemptOutcome(r.Outcome),
		HTTPStatus:         r.HTTPStatus,
		ErrorCategory:      model.ErrorCategory(r.ErrorCategory),
		ErrorMessage:       r.ErrorMessage,
		NextRetryAtMillis:  r.NextRetryAt,
		ResponseBodyPrefix: r.ResponseBodyPrefix,
	}
}

// RecordDeliveryAttempt appends one audit row for a completed attempt
//. Writes here are fire-and-forget from the
// dispatcher's point of view; callers should log-and-swallow any error
// returned.
func (sqlStore *SQLStore) RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Insert(deliveryAttemptsTable).SetMap(map[string]interface{}{
		"ID":                  attempt.ID,
		"DeliveryID":          attempt.DeliveryID,
		"SubscriptionID":      attempt.SubscriptionID,
		"EventID":             attempt.EventID,
		"AttemptNumber":       attempt.AttemptNumber,
		"StartAt":             attempt.StartAtMillis,
		"DurationMs":          attempt.Duration.Milliseconds(),
		"Outcome":             string(attempt.Outcome),
		"HTTPStatus":          attempt.HTTPStatus,
		"ErrorCategory":       string(attempt.ErrorCategory),
		"ErrorMessage":        attempt.ErrorMessage,
		"NextRetryAt":         attempt.NextRetryAtMillis,
		"ResponseBodyPrefix":  attempt.ResponseBodyPrefix,
	}))
	if err != nil {
		return errors.Wrap(err, "failed to record delivery attempt")
	}
	return nil
}

// ListDeliveryAttemptsBySubscription fetches attempt history for a
// subscription, filtered and paginated.
func (sqlStore *SQLStore) ListDeliveryAttemptsBySubscription(subscriptionID string, request *model.ListDeliveriesRequest) ([]*model.DeliveryAttemptRecord, error) {
	query := deliveryAttemptsSelect.
		Where("SubscriptionID = ?", subscriptionID).
		OrderBy("StartAt DESC")
	paging := request.Paging
	paging.IncludeDeleted = true // DeliveryAttempts has no DeleteAt column
	query = applyPagingFilter(query, paging)

	if request.Status != "" {
		query = query.Where("Outcome = ?", request.Status)
	}
	if request.FromMillis != 0 {
		query = query.Where("StartAt >= ?", request.FromMillis)
	}
	if request.ToMillis != 0 {
		query = query.Where("StartAt <= ?", request.ToMillis)
	}

	var rows []deliveryAttemptRow
	if err := sqlStore.selectBuilder(sqlStore.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to list delivery attempts")
	}

	records := make([]*model.DeliveryAttemptRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}
	return records, nil
}

// CountDeliveryAttempts counts attempt rows for a subscription matching
// the given filter.
func (sqlStore *SQLStore) CountDeliveryAttempts(subscriptionID string, request *model.ListDeliveriesRequest) (int64, error) {
	query := sq.Select("Count (*)").From(deliveryAttemptsTable).Where("SubscriptionID = ?", subscriptionID)
	if request.Status != "" {
		query = query.Where("Outcome = ?", request.Status)
	}
	count, err := sqlStore.getCount(query)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count delivery attempts")
	}
	return count, nil
}

// SubscriptionStats aggregates delivery attempt history for a subscription
// over [fromMillis, toMillis] inclusive.
func (sqlStore *SQLStore) SubscriptionStats(subscriptionID string, fromMillis, toMillis int64) (*model.SubscriptionStats, error) {
	var rows []struct {
		Outcome    string
		DurationMs int64
	}
	query := sq.Select("Outcome", "DurationMs").From(deliveryAttemptsTable).
		Where("SubscriptionID = ?", subscriptionID).
		Where("StartAt >= ?", fromMillis).
		Where("StartAt <= ?", toMillis)

	if err := sqlStore.selectBuilder(sqlStore.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate subscription stats")
	}

	stats := &model.SubscriptionStats{SubscriptionID: subscriptionID, FromMillis: fromMillis, ToMillis: toMillis}
	durations := make([]int64, 0, len(rows))
	var totalDuration int64
	for _, row := range rows {
		stats.TotalAttempts++
		if row.Outcome == string(model.AttemptOutcomeSuccess) {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		durations = append(durations, row.DurationMs)
		totalDuration += row.DurationMs
	}
	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalAttempts)
		stats.AverageDurationMillis = float64(totalDuration) / float64(stats.TotalAttempts)
		stats.P50DurationMillis = percentile(durations, 0.50)
		stats.P95DurationMillis = percentile(durations, 0.95)
		stats.P99DurationMillis = percentile(durations, 0.99)
	}
	return stats, nil
}
