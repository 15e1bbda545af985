package store

import (
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

const eventTable = "Events"

var eventColumns = []string{
	"ID",
	"SourceID",
	"EventType",
	"Fingerprint",
	"Collection",
	"ProcessedAt",
}

var eventSelect = sq.Select(eventColumns...).From(eventTable)

type eventRow struct {
	ID          string
	SourceID    string
	EventType   string
	Fingerprint string
	Collection  string
	ProcessedAt int64
}

func (r *eventRow) toModel() *model.Event {
	return &model.Event{
		ID:                    r.ID,
		EventType:             r.EventType,
		EntityKind:            eventKindFromType(r.EventType),
		SourceTimestampMillis: r.ProcessedAt,
		Collection:            r.Collection,
	}
}

// ListEvents fetches recorded events, most recent first, bounded by
// paging (spec §6 "list events").
func (sqlStore *SQLStore) ListEvents(paging model.Paging) ([]*model.Event, error) {
	paging.IncludeDeleted = true // Events has no DeleteAt column
	query := applyPagingFilter(eventSelect.OrderBy("ProcessedAt DESC"), paging)
	var rows []eventRow
	if err := sqlStore.selectBuilder(sqlStore.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	events := make([]*model.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events, nil
}

// GetEventMutation fetches the mutation snapshot recorded alongside an
// event, letting ReplayEvent rebuild a Payload without re-reading the
// change feed. Returns nil if the event was never recorded, was recorded
// before snapshotting existed, or has since been purged.
func (sqlStore *SQLStore) GetEventMutation(id string) (*model.MutationRecord, error) {
	var snapshot sql.NullString
	err := sqlStore.getBuilder(sqlStore.db, &snapshot, sq.Select("Snapshot").From(eventTable).Where("ID = ?", id))
	if err == sql.ErrNoRows || !snapshot.Valid || snapshot.String == "" {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event mutation snapshot")
	}
	var mutation model.MutationRecord
	if err := json.Unmarshal([]byte(snapshot.String), &mutation); err != nil {
		return nil, errors.Wrap(err, "failed to decode event mutation snapshot")
	}
	return &mutation, nil
}

func eventKindFromType(eventType string) string {
	for i := 0; i < len(eventType); i++ {
		if eventType[i] == '.' {
			return eventType[:i]
		}
	}
	return eventType
}

// RecordEvent durably records that a mutation was classified and routed,
// keyed on the (sourceID, eventType, fingerprint) tuple so a resumed
// change stream that redelivers the same mutation is recognized as a
// duplicate rather than routed twice. mutation is stored alongside as a
// JSON snapshot so a later "replay event" request can rebuild the
// original Payload without re-reading the change feed.
//
// A unique-constraint violation on that tuple means the event was already
// recorded; RecordEvent reports this as (false, nil) rather than an error,
// letting the pipeline treat it as "already processed, skip routing".
func (sqlStore *SQLStore) RecordEvent(event *model.Event, sourceID, fingerprint string, mutation *model.MutationRecord) (bool, error) {
	snapshot, err := json.Marshal(mutation)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode mutation snapshot")
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.Insert(eventTable).SetMap(map[string]interface{}{
		"ID":          event.ID,
		"SourceID":    sourceID,
		"EventType":   event.EventType,
		"Fingerprint": fingerprint,
		"Collection":  event.Collection,
		"ProcessedAt": event.SourceTimestampMillis,
		"Snapshot":    snapshot,
	}))
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to record event")
	}
	return true, nil
}

// GetEvent fetches a recorded event by id, or nil if it was never recorded
// or has since been purged.
func (sqlStore *SQLStore) GetEvent(id string) (*model.Event, error) {
	var row eventRow
	err := sqlStore.getBuilder(sqlStore.db, &row, eventSelect.Where("ID = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event")
	}
	return row.toModel(), nil
}

// IsDuplicateEvent reports whether the (sourceID, eventType, fingerprint)
// tuple has already been recorded. The pipeline does not call it; it
// detects duplicates through RecordEvent's unique-constraint check.
func (sqlStore *SQLStore) IsDuplicateEvent(sourceID, eventType, fingerprint string) (bool, error) {
	count, err := sqlStore.getCount(sq.Select("Count (*)").From(eventTable).
		Where(sq.Eq{"SourceID": sourceID, "EventType": eventType, "Fingerprint": fingerprint}))
	if err != nil {
		return false, errors.Wrap(err, "failed to check event duplicate")
	}
	return count > 0, nil
}

// PurgeEventsOlderThan removes recorded events whose ProcessedAt precedes
// the given millisecond timestamp, bounding the table's growth the same
// way PurgeExpiredDeadLetterEntries bounds the dead-letter table.
func (sqlStore *SQLStore) PurgeEventsOlderThan(olderThanMillis int64) (int64, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.Delete(eventTable).Where("ProcessedAt < ?", olderThanMillis))
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge expired events")
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count purged events")
	}
	return count, nil
}
