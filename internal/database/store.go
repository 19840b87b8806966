package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("not found")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Product is one scraped storefront product.
type Product struct {
	ID          int64          `db:"id"`
	URL         string         `db:"url"`
	Title       string         `db:"title"`
	Price       sql.NullString `db:"price"`
	Description sql.NullString `db:"description"`
	ScrapedAt   sql.NullTime   `db:"scraped_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Variant is one color or style option of a product, with the gallery
// image it selects.
type Variant struct {
	ProductID int64  `db:"product_id" json:"-"`
	Name      string `db:"name" json:"name"`
	ImageURL  string `db:"image_url" json:"image_url"`
	Position  int    `db:"position" json:"position"`
}

// ScrapeJob mirrors an API-submitted scrape run.
type ScrapeJob struct {
	ID           string          `db:"id"`
	Mode         string          `db:"mode"`
	URLs         []string        `db:"urls"`
	Status       JobStatus       `db:"status"`
	Result       json.RawMessage `db:"result"`
	ErrorMessage sql.NullString  `db:"error_message"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	price       TEXT,
	description TEXT,
	scraped_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS variants (
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	position   INT NOT NULL,
	PRIMARY KEY (product_id, name)
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id            TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	urls          TEXT[] NOT NULL,
	status        TEXT NOT NULL,
	result        JSONB,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema when it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertProduct inserts the product or refreshes its fields when the URL is
// already known. The generated ID is written back into p.
func (db *DB) UpsertProduct(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (url, title, price, description, scraped_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (url) DO UPDATE SET
			title       = EXCLUDED.title,
			price       = COALESCE(EXCLUDED.price, products.price),
			description = COALESCE(EXCLUDED.description, products.description),
			scraped_at  = now(),
			updated_at  = now()
		RETURNING id, created_at, updated_at`

	err := db.pool.QueryRow(ctx, query,
		p.URL, p.Title, p.Price, p.Description,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// ReplaceVariants swaps the stored variant set of a product for the given
// one, preserving listing order through the position column.
func (db *DB) ReplaceVariants(ctx context.Context, productID int64, variants []Variant) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE product_id = $1`, productID); err != nil {
			return fmt.Errorf("clear variants: %w", err)
		}
		for i, v := range variants {
			_, err := tx.Exec(ctx,
				`INSERT INTO variants (product_id, name, image_url, position) VALUES ($1, $2, $3, $4)`,
				productID, v.Name, v.ImageURL, i)
			if err != nil {
				return fmt.Errorf("insert variant %q: %w", v.Name, err)
			}
		}
		return nil
	})
}

// SaveProductVariants upserts the product and swaps its stored variant set
// in one call. Used after a successful variants scrape.
func (db *DB) SaveProductVariants(ctx context.Context, p *Product, variants []Variant) error {
	if err := db.UpsertProduct(ctx, p); err != nil {
		return err
	}
	return db.ReplaceVariants(ctx, p.ID, variants)
}

// ProductByURL loads one product by its canonical URL.
func (db *DB) ProductByURL(ctx context.Context, url string) (*Product, error) {
	var p Product
	err := db.pool.QueryRow(ctx,
		`SELECT id, url, title, price, description, scraped_at, created_at, updated_at
		 FROM products WHERE url = $1`, url,
	).Scan(&p.ID, &p.URL, &p.Title, &p.Price, &p.Description,
		&p.ScrapedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", url, err)
	}
	return &p, nil
}

// VariantsByProduct returns a product's variants in listing order.
func (db *DB) VariantsByProduct(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT product_id, name, image_url, position
		 FROM variants WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ProductID, &v.Name, &v.ImageURL, &v.Position); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// InsertJob records a newly accepted scrape job.
func (db *DB) InsertJob(ctx context.Context, job *ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (id, mode, urls, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query,
		job.ID, job.Mode, job.URLs, job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus moves a job through its lifecycle, optionally attaching a
// result payload or an error message.
func (db *DB) UpdateJobStatus(ctx context.Context, id string, status JobStatus, result json.RawMessage, errMsg string) error {
	query := `
		UPDATE scrape_jobs SET
			status        = $2,
			result        = COALESCE($3, result),
			error_message = NULLIF($4, ''),
			updated_at    = now()
		WHERE id = $1`

	tag, err := db.pool.Exec(ctx, query, id, status, result, errMsg)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: not found", id)
	}
	return nil
}

// JobByID loads one job.
func (db *DB) JobByID(ctx context.Context, id string) (*ScrapeJob, error) {
	var job ScrapeJob
	err := db.pool.QueryRow(ctx,
		`SELECT id, mode, urls, status, result, error_message, created_at, updated_at
		 FROM scrape_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Mode, &job.URLs, &job.Status, &job.Result,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return &job, nil
}
