package changesource

import (
	"context"
	"testing"
	"time"

	"github.com/relaydock/docrelay/internal/testlib"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestToMutationRecordMapsInsert(t *testing.T) {
	doc, err := bson.Marshal(map[string]interface{}{"_id": "I1", "title": "t"})
	require.NoError(t, err)

	raw := rawChangeEvent{
		ID:            bson.Raw([]byte{0x01, 0x02}),
		OperationType: "insert",
		Ns:            rawNamespace{Coll: "issues"},
		FullDocument:  bson.Raw(doc),
	}

	record := toMutationRecord(raw)
	require.Equal(t, model.OperationInsert, record.Operation)
	require.Equal(t, "issues", record.Collection)
	require.Equal(t, "t", record.PostImage["title"])
	require.Equal(t, "0102", record.ResumeToken)
}

func TestToMutationRecordMapsUpdateDescription(t *testing.T) {
	fields, err := bson.Marshal(map[string]interface{}{"status": "done"})
	require.NoError(t, err)

	raw := rawChangeEvent{
		ID:            bson.Raw([]byte{0xaa}),
		OperationType: "update",
		Ns:            rawNamespace{Coll: "issues"},
		UpdateDescription: &rawUpdateDescription{
			UpdatedFields: bson.Raw(fields),
			RemovedFields: []string{"oldField"},
		},
	}

	record := toMutationRecord(raw)
	require.Equal(t, model.OperationUpdate, record.Operation)
	require.True(t, record.UpdateDescription.HasField("status"))
	require.True(t, record.UpdateDescription.HasField("oldField"))
}

type fakeStream struct {
	events []rawChangeEvent
	idx    int
	err    error
}

func (f *fakeStream) Next(ctx context.Context) bool {
	if f.idx >= len(f.events) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeStream) Decode(val interface{}) error {
	out := val.(*rawChangeEvent)
	*out = f.events[f.idx-1]
	return nil
}

func (f *fakeStream) ResumeToken() bson.Raw { return bson.Raw([]byte{byte(f.idx)}) }
func (f *fakeStream) Err() error            { return f.err }
func (f *fakeStream) Close(ctx context.Context) error { return nil }

func TestStreamEmitsDecodedRecordsThenStopsOnCancel(t *testing.T) {
	stream := &fakeStream{events: []rawChangeEvent{
		{ID: bson.Raw([]byte{0x01}), OperationType: "insert", Ns: rawNamespace{Coll: "issues"}},
	}}
	src := newWithOpener(func(ctx context.Context, resumeToken bson.Raw) (changeStream, error) {
		return stream, nil
	}, testlib.MakeLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	out, errs := src.Stream(ctx, model.NewCursor(""))

	select {
	case record := <-out:
		require.Equal(t, "issues", record.Collection)
	case <-time.After(time.Second):
		t.Fatal("expected a record")
	}

	cancel()
	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected terminal error after cancel")
	}
}
