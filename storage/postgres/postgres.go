// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The records table uses a composite primary key (namespace, record_type,
// record_id) that mirrors the key space used by the BBolt and in-memory
// backends. The payload is stored as BYTEA alongside an updated-at column.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmensah/fieldcheck/storage"
)

const queryTimeout = 5 * time.Second

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(namespace, recordType, recordID string, rec *storage.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		INSERT INTO fieldcheck_records (namespace, record_type, record_id, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, record_type, record_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, q, namespace, recordType, recordID, rec.Data, updatedAt)
	return err
}

func (s *Store) Get(namespace, recordType, recordID string) (*storage.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT data, updated_at
		FROM fieldcheck_records
		WHERE namespace = $1 AND record_type = $2 AND record_id = $3
	`
	var rec storage.Record
	err := s.pool.QueryRow(ctx, q, namespace, recordType, recordID).
		Scan(&rec.Data, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		SELECT record_id
		FROM fieldcheck_records
		WHERE namespace = $1 AND record_type = $2
	`
	rows, err := s.pool.Query(ctx, q, namespace, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
		DELETE FROM fieldcheck_records
		WHERE namespace = $1 AND record_type = $2 AND record_id = $3
	`
	cmd, err := s.pool.Exec(ctx, q, namespace, recordType, recordID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return nil
}
