package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// SQLiteWriter stores every category in one products table with a fixed
// column set, so optional attributes are never dropped.
type SQLiteWriter struct {
	db  *sql.DB
	dsn string
	ctx context.Context

	mu         sync.Mutex
	rows       int64
	categories []string
}

const createProductsTable = `
CREATE TABLE IF NOT EXISTS products (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	output_category  TEXT NOT NULL,
	page_url         TEXT NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	image_url        TEXT NOT NULL,
	category         TEXT NOT NULL,
	review_rating    INTEGER,
	upc              TEXT,
	price_excl_tax   TEXT,
	price_incl_tax   TEXT,
	number_available INTEGER,
	scraped_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_output_category ON products(output_category);
`

const insertProduct = `
INSERT INTO products (
	output_category, page_url, title, description, image_url, category,
	review_rating, upc, price_excl_tax, price_incl_tax, number_available, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// NewSQLiteWriter opens dsn and creates the products table if needed. ctx also
// bounds every later Write and Validate.
func NewSQLiteWriter(ctx context.Context, dsn string) (*SQLiteWriter, error) {
	if path := sqliteFilePath(dsn); path != "" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, createProductsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create products table: %w", err)
	}

	return &SQLiteWriter{db: db, dsn: dsn, ctx: ctx}, nil
}

// Write replaces the rows previously stored for category.
func (sw *SQLiteWriter) Write(category string, records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	tx, err := sw.db.BeginTx(sw.ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(sw.ctx, `DELETE FROM products WHERE output_category = ?`, category); err != nil {
		return fmt.Errorf("clear category %q: %w", category, err)
	}

	stmt, err := tx.PrepareContext(sw.ctx, insertProduct)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	scrapedAt := time.Now().UTC().Format(time.RFC3339)
	for _, record := range records {
		var rating sql.NullInt64
		if record.Rating.Rated() {
			rating = sql.NullInt64{Int64: int64(record.Rating), Valid: true}
		}
		var available sql.NullInt64
		if n, ok := record.NumberAvailable(); ok {
			available = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		if _, err := stmt.ExecContext(sw.ctx,
			category,
			record.PageURL,
			record.Title,
			record.Description,
			record.ImageURL,
			record.Category,
			rating,
			nullableAttribute(record, models.AttrUPC),
			nullableAttribute(record, models.AttrPriceExclTax),
			nullableAttribute(record, models.AttrPriceInclTax),
			available,
			scrapedAt,
		); err != nil {
			return fmt.Errorf("insert %s: %w", record.PageURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	sw.rows += int64(len(records))
	sw.categories = append(sw.categories, category)
	return nil
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}

// Validate checks the table holds at least the rows written in this run. It
// still runs after ctx is cancelled so an interrupted run can be checked.
func (sw *SQLiteWriter) Validate() error {
	sw.mu.Lock()
	want := sw.rows
	sw.mu.Unlock()
	if want == 0 {
		return nil
	}

	var got int64
	if err := sw.db.QueryRowContext(context.WithoutCancel(sw.ctx), `SELECT COUNT(*) FROM products`).Scan(&got); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if got < want {
		return fmt.Errorf("products table has %d rows, wrote %d", got, want)
	}
	return nil
}

// Files returns the database location once something was written.
func (sw *SQLiteWriter) Files() []string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.rows == 0 {
		return nil
	}
	return []string{sw.dsn}
}

func nullableAttribute(record *models.ProductRecord, key models.AttributeKey) sql.NullString {
	value, ok := record.Attribute(key)
	return sql.NullString{String: value, Valid: ok}
}

// sqliteFilePath returns the on-disk path of a plain file DSN, or "" for
// in-memory and URI forms.
func sqliteFilePath(dsn string) string {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i]
	}
	return dsn
}
