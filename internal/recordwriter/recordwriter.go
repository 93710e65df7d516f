// Package recordwriter implements §4.9's Record Writer: it upserts only the
// Market-Data fields the Merge Adjudicator approved, deriving
// other_structured whenever the "other" field changed.
package recordwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/hotelbrain/internal/extractpipeline"
	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/models"
	"github.com/jmylchreest/hotelbrain/internal/schema"
)

// StructurerMaxTokens reuses the adjudicator/structurer token budget
// documented for the "other" field's free-text-to-JSON call.
const StructurerMaxTokens = extractpipeline.AdjudicatorMaxTokens

// MarketDataStore is the persistence seam the writer targets.
type MarketDataStore interface {
	Get(ctx context.Context, hotelID string) (*models.MarketDataRecord, error)
	// UpsertFields writes only the keys present in fields (plus
	// otherStructured when otherChanged is true); it must not touch any
	// other column, per invariant M1.
	UpsertFields(ctx context.Context, hotelID string, fields map[string]string, otherStructured string, otherChanged bool) error
}

// Writer applies adjudicated field updates to the Market-Data Record.
type Writer struct {
	store  MarketDataStore
	llm    *llmclient.Client
	logger *slog.Logger
}

func New(store MarketDataStore, llm *llmclient.Client, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, llm: llm, logger: logger}
}

// FieldUpdate is one category's adjudicated outcome.
type FieldUpdate struct {
	Category   string
	IsUpdate   bool
	MergedText string
}

// Write implements §4.9. Only categories with IsUpdate=true are written; if
// the "other" category changed, other_structured is recomputed. An empty
// update set is a logged no-op, never an error.
func (w *Writer) Write(ctx context.Context, hotelID, hotelName string, updates []FieldUpdate) error {
	fields := make(map[string]string)
	otherChanged := false
	var otherText string

	for _, u := range updates {
		if !u.IsUpdate {
			continue
		}
		trimmed := strings.TrimSpace(u.MergedText)
		if trimmed == "" || strings.EqualFold(trimmed, "N/A") {
			continue
		}
		fields[u.Category] = u.MergedText
		if u.Category == schema.OtherCategory {
			otherChanged = true
			otherText = u.MergedText
		}
	}

	if len(fields) == 0 {
		w.logger.Info("no field updates to write, skipping", "hotel_id", hotelID)
		return nil
	}

	otherStructured := ""
	if otherChanged {
		otherStructured = w.deriveOtherStructured(ctx, hotelName, otherText)
	}

	if err := w.store.UpsertFields(ctx, hotelID, fields, otherStructured, otherChanged); err != nil {
		return fmt.Errorf("upsert market data fields: %w", err)
	}
	return nil
}

// deriveOtherStructured converts the "other" field's free text into a flat,
// snake_case JSON object via a dedicated LLM call, falling back to "{}" on
// any call or parse failure per invariant M2's tolerant-failure contract.
func (w *Writer) deriveOtherStructured(ctx context.Context, hotelName, otherText string) string {
	prompt := buildStructurerPrompt(hotelName, otherText)

	result, err := w.llm.Complete(ctx, prompt, llmclient.CallOptions{MaxTokens: StructurerMaxTokens})
	if result == nil {
		w.logger.Warn("other_structured derivation call failed, defaulting to empty object", "error", err)
		return "{}"
	}

	var parsed map[string]any
	if !extractpipeline.ExtractJSONObject(result.Content, &parsed) {
		w.logger.Warn("other_structured derivation returned unparseable JSON, defaulting to empty object")
		return "{}"
	}

	serialized, err := marshalFlat(parsed)
	if err != nil {
		return "{}"
	}
	return serialized
}

func marshalFlat(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func buildStructurerPrompt(hotelName, otherText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Convert the following free-form notes about %q into a flat JSON object with snake_case keys. Do not nest objects or arrays of objects; use simple string, number, or boolean values only. Respond with the JSON object only.\n\n", hotelName)
	b.WriteString(otherText)
	return b.String()
}
