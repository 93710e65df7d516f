package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/hotelbrain/internal/models"
	"github.com/jmylchreest/hotelbrain/internal/schema"
)

// MarketDataRepository implements recordwriter.MarketDataStore: the
// Market-Data Record is one row per hotel with one nullable text column
// per Category Schema entry, plus other_structured. The table name is
// configurable (MARKET_DATA_TABLE).
type MarketDataRepository struct {
	db      *sql.DB
	table   string
	columns []string
}

// NewMarketDataRepository creates a repository against the given table
// name, defaulting to "market_data" when empty. The column set is derived
// from the Category Schema so it can never drift from invariant M1.
func NewMarketDataRepository(db *sql.DB, table string) *MarketDataRepository {
	if table == "" {
		table = "market_data"
	}
	return &MarketDataRepository{db: db, table: table, columns: schema.Names()}
}

// Get returns the existing record for hotelID, or (nil, nil) if none has
// been consolidated yet.
func (r *MarketDataRepository) Get(ctx context.Context, hotelID string) (*models.MarketDataRecord, error) {
	query := fmt.Sprintf(`SELECT hotel_id, %s, other_structured, created_at, updated_at FROM %s WHERE hotel_id = ?`,
		strings.Join(r.columns, ", "), r.table)

	dest := make([]any, len(r.columns)+4)
	var rec models.MarketDataRecord
	values := make([]sql.NullString, len(r.columns))
	var otherStructured, createdAt, updatedAt string

	dest[0] = &rec.HotelID
	for i := range r.columns {
		dest[i+1] = &values[i]
	}
	dest[len(r.columns)+1] = &otherStructured
	dest[len(r.columns)+2] = &createdAt
	dest[len(r.columns)+3] = &updatedAt

	err := r.db.QueryRowContext(ctx, query, hotelID).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market data record: %w", err)
	}

	rec.Fields = make(map[string]string, len(r.columns))
	for i, col := range r.columns {
		if values[i].Valid {
			rec.Fields[col] = values[i].String
		}
	}
	rec.OtherStructured = otherStructured
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &rec, nil
}

// UpsertFields writes only the keys present in fields (plus
// other_structured when otherChanged is true), leaving every other column
// untouched, per invariant M1's closed-schema contract.
func (r *MarketDataRepository) UpsertFields(ctx context.Context, hotelID string, fields map[string]string, otherStructured string, otherChanged bool) error {
	if len(fields) == 0 {
		return nil
	}

	for col := range fields {
		if !schema.IsValid(col) {
			return fmt.Errorf("upsert market data fields: %q is not in the category schema", col)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	insertCols := []string{"hotel_id"}
	insertPlaceholders := []string{"?"}
	insertArgs := []any{hotelID}
	updateClauses := []string{}

	for _, col := range r.columns {
		value, present := fields[col]
		if !present {
			continue
		}
		insertCols = append(insertCols, col)
		insertPlaceholders = append(insertPlaceholders, "?")
		insertArgs = append(insertArgs, value)
		updateClauses = append(updateClauses, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	insertCols = append(insertCols, "other_structured", "created_at", "updated_at")
	insertPlaceholders = append(insertPlaceholders, "?", "?", "?")
	insertArgs = append(insertArgs, otherStructured, now, now)
	updateClauses = append(updateClauses, "updated_at = excluded.updated_at")
	if otherChanged {
		updateClauses = append(updateClauses, "other_structured = excluded.other_structured")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT(hotel_id) DO UPDATE SET %s
	`, r.table, strings.Join(insertCols, ", "), strings.Join(insertPlaceholders, ", "), strings.Join(updateClauses, ", "))

	if _, err := r.db.ExecContext(ctx, query, insertArgs...); err != nil {
		return fmt.Errorf("upsert market data fields: %w", err)
	}
	return nil
}
