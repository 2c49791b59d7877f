package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/repo/postgres/migrations"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplenft.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ simplenft.Repository = (*Repository)(nil)

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// SaveNft upserts the enriched record, keyed by identifier
func (r *Repository) SaveNft(ctx context.Context, nft *simplenft.Nft) error {
	if nft == nil || nft.Identifier == "" {
		return fmt.Errorf("nft identifier is required")
	}
	data, err := json.Marshal(nft)
	if err != nil {
		return fmt.Errorf("failed to encode nft: %w", err)
	}

	query := `
		INSERT INTO nfts (identifier, collection, type, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) DO UPDATE SET
			collection = EXCLUDED.collection,
			type = EXCLUDED.type,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query, nft.Identifier, nft.Collection, string(nft.Type), data, time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("save nft", err)
	}
	return nil
}

// GetNft loads the stored record
func (r *Repository) GetNft(ctx context.Context, identifier string) (*simplenft.StoredNft, error) {
	query := `SELECT data, updated_at FROM nfts WHERE identifier = $1`

	var data []byte
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, identifier).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenft.ErrNotFound
		}
		return nil, r.handlePostgresError("get nft", err)
	}

	stored := &simplenft.StoredNft{UpdatedAt: updatedAt}
	if err := json.Unmarshal(data, &stored.Nft); err != nil {
		return nil, fmt.Errorf("failed to decode nft %s: %w", identifier, err)
	}
	return stored, nil
}

const migrationTable = "schema_migrations"

// Migrate applies the embedded migrations that have not run yet, in name order
func Migrate(ctx context.Context, db DBTX) error {
	return applyMigrations(ctx, db, migrations.FS)
}

func applyMigrations(ctx context.Context, db DBTX, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, migrationTable)
	if _, err := db.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied bool
		err := db.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)`, migrationTable), file).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := db.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := db.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)`, migrationTable), file); err != nil {
			return fmt.Errorf("record migration %s: %w", file, err)
		}
	}
	return nil
}
