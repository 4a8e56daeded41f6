package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-manga/pkg/simplemanga"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements simplemanga.CatalogStore using PostgreSQL. Each manga
// is one JSONB row of manga_catalog.
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

// Error handling helper
func (r *Repository) handlePostgresError(operation, id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			err = fmt.Errorf("required field %s is missing: %w", pgErr.ColumnName, err)
		case "42P01": // undefined_table
			err = fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			err = fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}
	return &simplemanga.StorageError{Backend: "postgres", Key: id, Op: operation, Err: err}
}

func (r *Repository) GetAll(ctx context.Context) ([]*simplemanga.Manga, error) {
	query := `SELECT id, record FROM manga_catalog ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("get_all", "", err)
	}
	defer rows.Close()

	result := []*simplemanga.Manga{}
	for rows.Next() {
		var id string
		var record []byte
		if err := rows.Scan(&id, &record); err != nil {
			return nil, r.handlePostgresError("get_all", "", err)
		}
		var manga simplemanga.Manga
		if err := json.Unmarshal(record, &manga); err != nil {
			return nil, r.handlePostgresError("get_all", id, fmt.Errorf("failed to decode record: %w", err))
		}
		result = append(result, &manga)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("get_all", "", err)
	}
	return result, nil
}

const upsertQuery = `
	INSERT INTO manga_catalog (id, record, created_at, updated_at)
	VALUES ($1, $2, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`

func (r *Repository) Put(ctx context.Context, manga *simplemanga.Manga) error {
	record, err := json.Marshal(manga)
	if err != nil {
		return fmt.Errorf("failed to encode manga %s: %w", manga.ID, err)
	}
	if _, err := r.db.Exec(ctx, upsertQuery, manga.ID, record); err != nil {
		return r.handlePostgresError("put", manga.ID, err)
	}
	return nil
}

// PutMany upserts every record in one transaction
func (r *Repository) PutMany(ctx context.Context, mangas []*simplemanga.Manga) error {
	if len(mangas) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, m := range mangas {
			record, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to encode manga %s: %w", m.ID, err)
			}
			if _, err := tx.Exec(ctx, upsertQuery, m.ID, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.handlePostgresError("put_many", mangas[0].ID, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM manga_catalog WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return r.handlePostgresError("delete", id, err)
	}
	return nil
}
