package recordwriter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/models"
)

type fakeStore struct {
	records map[string]*models.MarketDataRecord
	calls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.MarketDataRecord)}
}

func (f *fakeStore) Get(_ context.Context, hotelID string) (*models.MarketDataRecord, error) {
	return f.records[hotelID], nil
}

func (f *fakeStore) UpsertFields(_ context.Context, hotelID string, fields map[string]string, otherStructured string, otherChanged bool) error {
	f.calls++
	rec, ok := f.records[hotelID]
	if !ok {
		rec = &models.MarketDataRecord{HotelID: hotelID}
		f.records[hotelID] = rec
	}
	for k, v := range fields {
		rec.Set(k, v)
	}
	if otherChanged {
		rec.OtherStructured = otherStructured
	}
	return nil
}

func llmStub(t *testing.T, content string) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-test",
			"model": llmclient.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	return llmclient.New("test-key", srv.URL, nil)
}

func TestWriteSkipsNonUpdatedFields(t *testing.T) {
	store := newFakeStore()
	w := New(store, nil, nil)

	err := w.Write(context.Background(), "hotel-1", "Example Resort", []FieldUpdate{
		{Category: "amenities", IsUpdate: false, MergedText: "unused"},
	})
	require.NoError(t, err)
	assert.Zero(t, store.calls, "no-op write set must not reach the store")
}

func TestWriteUpsertsOnlyApprovedFields(t *testing.T) {
	store := newFakeStore()
	w := New(store, nil, nil)

	err := w.Write(context.Background(), "hotel-1", "Example Resort", []FieldUpdate{
		{Category: "amenities", IsUpdate: true, MergedText: "Pool and spa."},
		{Category: "contacts", IsUpdate: false, MergedText: "ignored"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)

	rec := store.records["hotel-1"]
	assert.Equal(t, "Pool and spa.", rec.Get("amenities"))
	assert.Equal(t, "", rec.Get("contacts"))
}

func TestWriteDerivesOtherStructuredWhenOtherChanged(t *testing.T) {
	store := newFakeStore()
	llm := llmStub(t, `{"has_rooftop_bar": true, "pet_fee_usd": 25}`)
	w := New(store, llm, nil)

	err := w.Write(context.Background(), "hotel-1", "Example Resort", []FieldUpdate{
		{Category: "other", IsUpdate: true, MergedText: "Has a rooftop bar; pet fee is $25."},
	})
	require.NoError(t, err)

	rec := store.records["hotel-1"]
	assert.Contains(t, rec.OtherStructured, "has_rooftop_bar")
}

func TestWriteDefaultsOtherStructuredToEmptyObjectOnParseFailure(t *testing.T) {
	store := newFakeStore()
	llm := llmStub(t, "I cannot produce JSON for that.")
	w := New(store, llm, nil)

	err := w.Write(context.Background(), "hotel-1", "Example Resort", []FieldUpdate{
		{Category: "other", IsUpdate: true, MergedText: "Some unstructured note."},
	})
	require.NoError(t, err)

	rec := store.records["hotel-1"]
	assert.Equal(t, "{}", rec.OtherStructured)
}

func TestWriteTreatsBlankAndNAAsNonUpdates(t *testing.T) {
	store := newFakeStore()
	w := New(store, nil, nil)

	err := w.Write(context.Background(), "hotel-1", "Example Resort", []FieldUpdate{
		{Category: "amenities", IsUpdate: true, MergedText: "   "},
		{Category: "contacts", IsUpdate: true, MergedText: "N/A"},
	})
	require.NoError(t, err)
	assert.Zero(t, store.calls)
}
