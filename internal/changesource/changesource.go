// Package changesource implements the Change Source: a resumable,
// infinite stream of Mutation Records consumed from the document store's
// native change feed (spec §4.1).
package changesource

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrCursorExpired is surfaced when the source's resume token has fallen
// out of the feed's retention window; the caller must choose between a
// snapshot replay and skipping ahead (spec §4.1 "unrecoverable gap").
var ErrCursorExpired = errors.New("change stream cursor expired")

// changeStream is the subset of *mongo.ChangeStream the Source depends
// on, narrowed for testability.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// opener opens a new change stream positioned after resumeToken (nil for
// "from now").
type opener func(ctx context.Context, resumeToken bson.Raw) (changeStream, error)

// Source streams Mutation Records from a MongoDB-compatible change feed.
type Source struct {
	open   opener
	logger logrus.FieldLogger
}

// Open constructs a Source watching every collection in database.
func Open(client *mongo.Client, database string, logger logrus.FieldLogger) *Source {
	db := client.Database(database)
	return &Source{
		logger: logger.WithField("component", "changesource"),
		open: func(ctx context.Context, resumeToken bson.Raw) (changeStream, error) {
			opts := options.ChangeStream().
				SetFullDocument(options.UpdateLookup).
				SetFullDocumentBeforeChange(options.WhenAvailable)
			if resumeToken != nil {
				opts.SetResumeAfter(resumeToken)
			}
			return db.Watch(ctx, mongo.Pipeline{}, opts)
		},
	}
}

// Stream opens the feed from cursor (or from now, if cursor is empty
// or unparseable) and returns a channel of Mutation Records plus a channel that
// receives exactly one terminal error (ErrCursorExpired, or ctx.Err())
// before the stream stops. Transient errors are retried internally with
// bounded exponential backoff and jitter and never reach errs.
func (s *Source) Stream(ctx context.Context, cursor *model.Cursor) (<-chan *model.MutationRecord, <-chan error) {
	out := make(chan *model.MutationRecord)
	errs := make(chan error, 1)

	resumeToken, err := decodeResumeToken(cursor)
	if err != nil {
		s.logger.WithError(err).Warn("ignoring unparseable stored cursor, resuming from now")
		resumeToken = nil
	}

	go s.run(ctx, out, errs, resumeToken)
	return out, errs
}

func (s *Source) run(ctx context.Context, out chan<- *model.MutationRecord, errs chan<- error, resumeToken bson.Raw) {
	defer close(out)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			errs <- ctx.Err()
			return
		}

		stream, err := s.open(ctx, resumeToken)
		if err != nil {
			if isCursorExpired(err) {
				errs <- ErrCursorExpired
				return
			}
			if !s.wait(ctx, policy.NextBackOff()) {
				errs <- ctx.Err()
				return
			}
			continue
		}
		policy.Reset()

		for stream.Next(ctx) {
			var raw rawChangeEvent
			if decodeErr := stream.Decode(&raw); decodeErr != nil {
				s.logger.WithError(decodeErr).Error("failed to decode change event, skipping")
				continue
			}
			record := toMutationRecord(raw)
			resumeToken = stream.ResumeToken()

			select {
			case out <- record:
			case <-ctx.Done():
				_ = stream.Close(ctx)
				errs <- ctx.Err()
				return
			}
		}

		streamErr := stream.Err()
		_ = stream.Close(ctx)

		if streamErr == nil {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}
			continue
		}
		if isCursorExpired(streamErr) {
			errs <- ErrCursorExpired
			return
		}
		if !s.wait(ctx, policy.NextBackOff()) {
			errs <- ctx.Err()
			return
		}
	}
}

func (s *Source) wait(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		d = time.Minute
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// isCursorExpired reports whether err indicates the resume token has
// fallen outside the feed's retention window (the native
// ChangeStreamHistoryLost condition).
func isCursorExpired(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "ChangeStreamHistoryLost") || strings.Contains(err.Error(), "doesn't exist") ||
		strings.Contains(err.Error(), "code 286")
}

// rawChangeEvent mirrors the native change-stream document shape.
type rawChangeEvent struct {
	ID                       bson.Raw          `bson:"_id"`
	OperationType            string             `bson:"operationType"`
	ClusterTime              bson.Timestamp     `bson:"clusterTime"`
	Ns                       rawNamespace       `bson:"ns"`
	DocumentKey              bson.Raw           `bson:"documentKey"`
	FullDocument             bson.Raw           `bson:"fullDocument"`
	FullDocumentBeforeChange bson.Raw           `bson:"fullDocumentBeforeChange"`
	UpdateDescription        *rawUpdateDescription `bson:"updateDescription"`
}

type rawNamespace struct {
	Coll string `bson:"coll"`
}

type rawUpdateDescription struct {
	UpdatedFields   bson.Raw           `bson:"updatedFields"`
	RemovedFields   []string           `bson:"removedFields"`
	TruncatedArrays []rawTruncatedArray `bson:"truncatedArrays"`
}

type rawTruncatedArray struct {
	Field   string `bson:"field"`
	NewSize int    `bson:"newSize"`
}

func toMutationRecord(raw rawChangeEvent) *model.MutationRecord {
	record := &model.MutationRecord{
		ResumeToken:            hex.EncodeToString(raw.ID),
		ClusterTimestampMillis: int64(raw.ClusterTime.T) * 1000,
		Collection:             raw.Ns.Coll,
		Operation:              toOperation(raw.OperationType),
		DocumentKey:            documentKeyID(raw.DocumentKey),
		PostImage:              rawToMap(raw.FullDocument),
		PreImage:               rawToMap(raw.FullDocumentBeforeChange),
	}
	if raw.UpdateDescription != nil {
		record.UpdateDescription = &model.UpdateDescription{
			UpdatedFields: rawToMap(raw.UpdateDescription.UpdatedFields),
			RemovedFields: raw.UpdateDescription.RemovedFields,
		}
		for _, truncated := range raw.UpdateDescription.TruncatedArrays {
			record.UpdateDescription.TruncatedArrays = append(record.UpdateDescription.TruncatedArrays, model.TruncatedArray{
				Field: truncated.Field, NewSize: truncated.NewSize,
			})
		}
	}
	return record
}

func toOperation(opType string) model.Operation {
	switch opType {
	case "insert":
		return model.OperationInsert
	case "delete":
		return model.OperationDelete
	default:
		return model.OperationUpdate
	}
}

func documentKeyID(raw bson.Raw) string {
	if raw == nil {
		return ""
	}
	if id, err := raw.LookupErr("_id"); err == nil {
		return id.String()
	}
	return ""
}

func rawToMap(raw bson.Raw) map[string]interface{} {
	if raw == nil {
		return nil
	}
	var out map[string]interface{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeResumeToken(cursor *model.Cursor) (bson.Raw, error) {
	if cursor.IsEmpty() {
		return nil, nil
	}
	decoded, err := hex.DecodeString(cursor.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode stored cursor token")
	}
	return bson.Raw(decoded), nil
}

// EncodeCursor builds the store-persisted token for a change stream's
// current resume token.
func EncodeCursor(token bson.Raw) *model.Cursor {
	return model.NewCursor(hex.EncodeToString(token))
}

// newWithOpener builds a Source over a caller-supplied opener, letting
// tests substitute a fake change stream instead of a live connection.
func newWithOpener(open opener, logger logrus.FieldLogger) *Source {
	return &Source{open: open, logger: logger.WithField("component", "changesource")}
}
