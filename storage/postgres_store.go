package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"dwv-scraper/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists normalized listings to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ ListingStore = (*PostgresStore)(nil)

// NewPostgresStore opens a connection, runs schema migrations, and returns a
// ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS dwv_listings (
			id            SERIAL PRIMARY KEY,
			title         TEXT         NOT NULL,
			price         TEXT         NOT NULL DEFAULT '',
			location      TEXT         NOT NULL DEFAULT '',
			bedrooms      INT          NOT NULL DEFAULT 0,
			bathrooms     INT          NOT NULL DEFAULT 0,
			area_sqft     NUMERIC(12,2) NOT NULL DEFAULT 0,
			description   TEXT         NOT NULL DEFAULT '',
			image_url     TEXT         NOT NULL DEFAULT '',
			property_type TEXT         NOT NULL DEFAULT '',
			listing_url   TEXT         NOT NULL DEFAULT '',
			features      TEXT[]       NOT NULL DEFAULT '{}',
			agent_name    TEXT         NOT NULL DEFAULT '',
			agent_phone   TEXT         NOT NULL DEFAULT '',
			status        VARCHAR(20)  NOT NULL DEFAULT 'active',
			scraped_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CONSTRAINT dwv_listings_title_key UNIQUE (title)
		);

		CREATE INDEX IF NOT EXISTS idx_dwv_listings_location ON dwv_listings(location);
		CREATE INDEX IF NOT EXISTS idx_dwv_listings_status   ON dwv_listings(status);
	`)
	return err
}

// GetExistingTitles returns the subset of titles already stored.
func (s *PostgresStore) GetExistingTitles(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	query, args, err := psql.
		Select("title").
		From("dwv_listings").
		Where(sq.Expr("title = ANY(?)", pq.Array(titles))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build title query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query titles: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("postgres: scan title: %w", err)
		}
		existing = append(existing, title)
	}
	return existing, rows.Err()
}

// InsertListings batch-inserts listings, skipping title conflicts, and
// reports the number of rows actually written.
func (s *PostgresStore) InsertListings(ctx context.Context, listings []*models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	builder := psql.
		Insert("dwv_listings").
		Columns("title", "price", "location", "bedrooms", "bathrooms", "area_sqft",
			"description", "image_url", "property_type", "listing_url",
			"features", "agent_name", "agent_phone", "status", "scraped_at").
		Suffix("ON CONFLICT (title) DO NOTHING")

	for _, l := range listings {
		builder = builder.Values(
			l.Title, l.Price, l.Location, l.Bedrooms, l.Bathrooms, l.AreaSqFt,
			l.Description, l.ImageURL, l.PropertyType, l.ListingURL,
			pq.Array(l.Features), l.AgentName, l.AgentPhone, l.Status, l.ScrapedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("postgres: build insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return len(listings), nil
	}
	return int(affected), nil
}

// FetchAll retrieves every stored listing, newest first — consumed by the UI
// collaborator.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	query, args, err := psql.
		Select("title", "price", "location", "bedrooms", "bathrooms", "area_sqft",
			"description", "image_url", "property_type", "listing_url",
			"features", "agent_name", "agent_phone", "status", "scraped_at").
		From("dwv_listings").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build fetch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(
			&l.Title, &l.Price, &l.Location, &l.Bedrooms, &l.Bathrooms, &l.AreaSqFt,
			&l.Description, &l.ImageURL, &l.PropertyType, &l.ListingURL,
			pq.Array(&l.Features), &l.AgentName, &l.AgentPhone, &l.Status, &l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
