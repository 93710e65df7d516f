// Package repository implements the persistence seams DCCP and CDEME read
// and write through: the Page Artifact table (one row per hotel/URL pair)
// and the Market-Data Record table (one row per hotel). Both are backed by
// libsql/SQLite through database/sql, following the teacher's query-and-scan
// repository style rather than an ORM.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/hotelbrain/internal/models"
)

// PageRepository implements the Page Artifact persistence contract used by
// internal/crawler (crawler.PageStore) and internal/bucket (bucket.PageSource).
// The table name is configurable (HOTEL_PAGE_DATA_TABLE) so it is interpolated
// into each query rather than bound as a parameter.
type PageRepository struct {
	db    *sql.DB
	table string
}

// NewPageRepository creates a repository against the given table name,
// defaulting to "hotel_page_data" when empty.
func NewPageRepository(db *sql.DB, table string) *PageRepository {
	if table == "" {
		table = "hotel_page_data"
	}
	return &PageRepository{db: db, table: table}
}

// Get returns the existing artifact for (hotelID, pageURL), or (nil, nil)
// if none exists yet.
func (r *PageRepository) Get(ctx context.Context, hotelID, pageURL string) (*models.PageArtifact, error) {
	query := fmt.Sprintf(`
		SELECT hotel_id, page_url, raw_html, canonical_html, markdown, markdown_prev,
			checksum, llm_input_checksum, llm_output, depth, active, is_checksum_updated,
			created_at, updated_at, llm_updated
		FROM %s WHERE hotel_id = ? AND page_url = ?
	`, r.table)

	page, err := scanPage(r.db.QueryRowContext(ctx, query, hotelID, pageURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get page artifact: %w", err)
	}
	return page, nil
}

// Upsert writes page, replacing any existing row for (HotelID, PageURL).
// Callers (internal/crawler) are responsible for rolling Markdown into
// MarkdownPrev and carrying forward LLM fields before calling Upsert, per
// invariant P1.
func (r *PageRepository) Upsert(ctx context.Context, page *models.PageArtifact) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (hotel_id, page_url, raw_html, canonical_html, markdown, markdown_prev,
			checksum, llm_input_checksum, llm_output, depth, active, is_checksum_updated,
			created_at, updated_at, llm_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hotel_id, page_url) DO UPDATE SET
			raw_html = excluded.raw_html,
			canonical_html = excluded.canonical_html,
			markdown = excluded.markdown,
			markdown_prev = excluded.markdown_prev,
			checksum = excluded.checksum,
			llm_input_checksum = excluded.llm_input_checksum,
			llm_output = excluded.llm_output,
			depth = excluded.depth,
			active = excluded.active,
			is_checksum_updated = excluded.is_checksum_updated,
			updated_at = excluded.updated_at,
			llm_updated = excluded.llm_updated
	`, r.table)

	now := time.Now().UTC()
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = now
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}

	active := 0
	if page.Active {
		active = 1
	}
	checksumUpdated := 0
	if page.IsChecksumUpdated {
		checksumUpdated = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		page.HotelID, page.PageURL, page.RawHTML, page.CanonicalHTML, page.Markdown, page.MarkdownPrev,
		page.Checksum, nullString(page.LLMInputChecksum), nullString(page.LLMOutput),
		page.Depth, active, checksumUpdated,
		page.CreatedAt.Format(time.RFC3339), page.UpdatedAt.Format(time.RFC3339), nullTime(page.LLMUpdated),
	)
	if err != nil {
		return fmt.Errorf("upsert page artifact: %w", err)
	}
	return nil
}

// DeactivateExcept clears Active on every row for hotelID whose PageURL is
// not in keep, implementing invariant P3 at the end of a crawl run. An
// empty keep set deactivates every row for the hotel.
func (r *PageRepository) DeactivateExcept(ctx context.Context, hotelID string, keep []string) error {
	if len(keep) == 0 {
		query := fmt.Sprintf(`UPDATE %s SET active = 0, updated_at = ? WHERE hotel_id = ? AND active = 1`, r.table)
		_, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), hotelID)
		if err != nil {
			return fmt.Errorf("deactivate all pages: %w", err)
		}
		return nil
	}

	placeholders := make([]string, len(keep))
	args := make([]any, 0, len(keep)+2)
	args = append(args, time.Now().UTC().Format(time.RFC3339), hotelID)
	for i, url := range keep {
		placeholders[i] = "?"
		args = append(args, url)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET active = 0, updated_at = ?
		WHERE hotel_id = ? AND active = 1 AND page_url NOT IN (%s)
	`, r.table, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate stale pages: %w", err)
	}
	return nil
}

// DirtyPages returns every page eligible for extraction per invariant P2:
// active, non-empty markdown, and its checksum not yet consumed by the
// extractor. The NULL-safe comparison is written explicitly (IS NULL OR !=)
// rather than relying on a database-specific NULL-safe operator.
func (r *PageRepository) DirtyPages(ctx context.Context, hotelID string) ([]*models.PageArtifact, error) {
	query := fmt.Sprintf(`
		SELECT hotel_id, page_url, raw_html, canonical_html, markdown, markdown_prev,
			checksum, llm_input_checksum, llm_output, depth, active, is_checksum_updated,
			created_at, updated_at, llm_updated
		FROM %s
		WHERE hotel_id = ?
			AND active = 1
			AND markdown != ''
			AND (llm_input_checksum IS NULL OR llm_input_checksum != checksum)
	`, r.table)

	rows, err := r.db.QueryContext(ctx, query, hotelID)
	if err != nil {
		return nil, fmt.Errorf("query dirty pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []*models.PageArtifact
	for rows.Next() {
		page, err := scanPageFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dirty page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// HomepageURL returns the URL of the active depth-0 page for hotelID (the
// crawl seed), or "" if none has been scraped yet. The refiner uses this to
// weight the homepage second after topically related pages.
func (r *PageRepository) HomepageURL(ctx context.Context, hotelID string) (string, error) {
	query := fmt.Sprintf(`SELECT page_url FROM %s WHERE hotel_id = ? AND depth = 0 AND active = 1 LIMIT 1`, r.table)

	var url string
	err := r.db.QueryRowContext(ctx, query, hotelID).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get homepage url: %w", err)
	}
	return url, nil
}

// MarkExtracted records that a page's current checksum has been consumed
// by extraction, along with the raw JSON the extractor produced.
func (r *PageRepository) MarkExtracted(ctx context.Context, hotelID, pageURL, checksum, llmOutput string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET llm_input_checksum = ?, llm_output = ?, llm_updated = ?
		WHERE hotel_id = ? AND page_url = ?
	`, r.table)

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, query, checksum, llmOutput, now, hotelID, pageURL)
	if err != nil {
		return fmt.Errorf("mark page extracted: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row *sql.Row) (*models.PageArtifact, error) {
	return scanPageRow(row)
}

func scanPageFromRows(rows *sql.Rows) (*models.PageArtifact, error) {
	return scanPageRow(rows)
}

func scanPageRow(s rowScanner) (*models.PageArtifact, error) {
	var p models.PageArtifact
	var llmInputChecksum, llmOutput, llmUpdated sql.NullString
	var active, checksumUpdated int
	var createdAt, updatedAt string

	err := s.Scan(
		&p.HotelID, &p.PageURL, &p.RawHTML, &p.CanonicalHTML, &p.Markdown, &p.MarkdownPrev,
		&p.Checksum, &llmInputChecksum, &llmOutput, &p.Depth, &active, &checksumUpdated,
		&createdAt, &updatedAt, &llmUpdated,
	)
	if err != nil {
		return nil, err
	}

	p.Active = active != 0
	p.IsChecksumUpdated = checksumUpdated != 0
	if llmInputChecksum.Valid {
		p.LLMInputChecksum = &llmInputChecksum.String
	}
	if llmOutput.Valid {
		p.LLMOutput = &llmOutput.String
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if llmUpdated.Valid {
		t, err := time.Parse(time.RFC3339, llmUpdated.String)
		if err == nil {
			p.LLMUpdated = &t
		}
	}

	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
