package store

import (
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

const deadLetterTable = "DeadLetterQueue"

var deadLetterColumns = []string{
	"ID",
	"SubscriptionID",
	"EventType",
	"FailureReason",
	"AttemptsConsumed",
	"DeadLetteredAt",
	"RetryCount",
	"LastRetryOutcome",
	"Delivery",
}

var deadLetterSelect = sq.Select(deadLetterColumns...).From(deadLetterTable)

type deadLetterRow struct {
	ID                string
	SubscriptionID    string
	EventType         string
	FailureReason     string
	AttemptsConsumed  int
	DeadLetteredAt    int64
	RetryCount        int
	LastRetryOutcome  string
	Delivery          []byte
}

func (r *deadLetterRow) toModel() (*model.DeadLetterEntry, error) {
	var delivery model.DeliveryItem
	if err := json.Unmarshal(r.Delivery, &delivery); err != nil {
		return nil, errors.Wrap(err, "failed to decode dead-letter delivery snapshot")
	}
	return &model.DeadLetterEntry{
		ID:                   r.ID,
		Delivery:             &delivery,
		SubscriptionID:       r.SubscriptionID,
		EventType:            r.EventType,
		FailureReason:        r.FailureReason,
		AttemptsConsumed:     r.AttemptsConsumed,
		DeadLetteredAtMillis: r.DeadLetteredAt,
		RetryCount:           r.RetryCount,
		LastRetryOutcome:     r.LastRetryOutcome,
	}, nil
}

// AddDeadLetterEntry durably mirrors a dead-lettered delivery. The in-memory LRU is the caller's concern; this is the durable
// side of the mirrored write.
func (sqlStore *SQLStore) AddDeadLetterEntry(entry *model.DeadLetterEntry) error {
	deliveryJSON, err := json.Marshal(entry.Delivery)
	if err != nil {
		return errors.Wrap(err, "failed to encode delivery snapshot")
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.Insert(deadLetterTable).SetMap(map[string]interface{}{
		"ID":               entry.ID,
		"SubscriptionID":   entry.SubscriptionID,
		"EventType":        entry.EventType,
		"FailureReason":    entry.FailureReason,
		"AttemptsConsumed": entry.AttemptsConsumed,
		"DeadLetteredAt":   entry.DeadLetteredAtMillis,
		"RetryCount":       entry.RetryCount,
		"LastRetryOutcome": entry.LastRetryOutcome,
		"Delivery":         deliveryJSON,
	}))
	if err != nil {
		return errors.Wrap(err, "failed to add dead-letter entry")
	}
	return nil
}

// GetDeadLetterEntry fetches a single entry by id, or nil if absent.
func (sqlStore *SQLStore) GetDeadLetterEntry(id string) (*model.DeadLetterEntry, error) {
	var row deadLetterRow
	err := sqlStore.getBuilder(sqlStore.db, &row, deadLetterSelect.Where("ID = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get dead-letter entry")
	}
	return row.toModel()
}

// ListDeadLetterEntries fetches entries matching the given filter (spec
// §4.9 "list").
func (sqlStore *SQLStore) ListDeadLetterEntries(request *model.ListDeadLetterRequest) ([]*model.DeadLetterEntry, error) {
	query := deadLetterSelect.OrderBy("DeadLetteredAt DESC")
	paging := request.Paging
	paging.IncludeDeleted = true // DeadLetterQueue has no DeleteAt column
	query = applyPagingFilter(query, paging)

	if request.SubscriptionID != "" {
		query = query.Where("SubscriptionID = ?", request.SubscriptionID)
	}
	if request.EventType != "" {
		query = query.Where("EventType = ?", request.EventType)
	}

	var rows []deadLetterRow
	if err := sqlStore.selectBuilder(sqlStore.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to list dead-letter entries")
	}

	entries := make([]*model.DeadLetterEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RemoveDeadLetterEntry deletes a single entry, e.g. after a successful
// replay.
func (sqlStore *SQLStore) RemoveDeadLetterEntry(id string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Delete(deadLetterTable).Where("ID = ?", id))
	if err != nil {
		return errors.Wrap(err, "failed to remove dead-letter entry")
	}
	return nil
}

// UpdateDeadLetterRetry records a replay attempt's outcome against its
// source entry.
func (sqlStore *SQLStore) UpdateDeadLetterRetry(id, outcome string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.Update(deadLetterTable).
		Set("RetryCount", sq.Expr("RetryCount + 1")).
		Set("LastRetryOutcome", outcome).
		Where("ID = ?", id),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update dead-letter retry outcome")
	}
	return nil
}

// ClearDeadLetterEntries removes every dead-letter entry.
func (sqlStore *SQLStore) ClearDeadLetterEntries() error {
	_, err := sqlStore.exec(sqlStore.db, "DELETE FROM "+deadLetterTable)
	if err != nil {
		return errors.Wrap(err, "failed to clear dead-letter entries")
	}
	return nil
}

// PurgeExpiredDeadLetterEntries removes entries older than the retention
// window, returning the number removed.
func (sqlStore *SQLStore) PurgeExpiredDeadLetterEntries(olderThanMillis int64) (int64, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.Delete(deadLetterTable).Where("DeadLetteredAt < ?", olderThanMillis))
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge expired dead-letter entries")
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count purged dead-letter entries")
	}
	return count, nil
}

// CountDeadLetterEntries returns the total number of entries currently
// held in the durable dead-letter table.
func (sqlStore *SQLStore) CountDeadLetterEntries() (int64, error) {
	count, err := sqlStore.getCount(sq.Select("Count (*)").From(deadLetterTable))
	if err != nil {
		return 0, errors.Wrap(err, "failed to count dead-letter entries")
	}
	return count, nil
}
