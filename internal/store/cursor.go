package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

// cursorRowID is the single row id the Cursor table is overwritten at
// (spec §6 "cursor: single document, overwrite-in-place").
const cursorRowID = 1

// GetCursor fetches the persisted cursor, returning nil if the stream has
// never advanced.
func (sqlStore *SQLStore) GetCursor() (*model.Cursor, error) {
	var row struct {
		Token    string
		UpdateAt int64
	}
	err := sqlStore.getBuilder(sqlStore.db, &row,
		sq.Select("Token", "UpdateAt").From("Cursor").Where("ID = ?", cursorRowID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get cursor")
	}
	return &model.Cursor{Token: row.Token, UpdatedAt: row.UpdateAt}, nil
}

// SetCursor atomically overwrites the persisted cursor. Callers must only
// call this once every matching subscription's Delivery Item for the
// mutation has been enqueued (spec §3, invariant 1).
func (sqlStore *SQLStore) SetCursor(cursor *model.Cursor) error {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.Update("Cursor").
		Set("Token", cursor.Token).
		Set("UpdateAt", cursor.UpdatedAt).
		Where("ID = ?", cursorRowID))
	if err != nil {
		return errors.Wrap(err, "failed to update cursor")
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return nil
	}

	_, err = sqlStore.execBuilder(sqlStore.db, sq.Insert("Cursor").
		Columns("ID", "Token", "UpdateAt").
		Values(cursorRowID, cursor.Token, cursor.UpdatedAt))
	if err != nil {
		return errors.Wrap(err, "failed to insert cursor")
	}
	return nil
}
