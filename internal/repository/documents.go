package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nadmax/tempo/internal/store"
)

// PostgresDocumentStore keeps whole documents in a single key/value table.
type PostgresDocumentStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresDocumentStore)(nil)

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM tempo_documents WHERE key = $1`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *PostgresDocumentStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO tempo_documents (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value)

	return err
}

func (s *PostgresDocumentStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM tempo_documents WHERE key = $1`
	_, err := s.db.ExecContext(ctx, query, key)

	return err
}

func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}
