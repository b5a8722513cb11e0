package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLBackend stores each key as one row of the documents table.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

// OpenSQLBackend opens the database, applies migrations and returns a backend
// that owns the connection.
func OpenSQLBackend(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	db, err := Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return NewSQLBackend(db, dialect), nil
}

func (b *SQLBackend) DB() *sql.DB {
	return b.db
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT body FROM documents WHERE doc_key=%s`, b.dialect.placeholder(1))
	var body string
	err := b.db.QueryRowContext(ctx, query, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return []byte(body), nil
}

func (b *SQLBackend) Put(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO documents (doc_key, body, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (doc_key) DO UPDATE SET body=excluded.body, updated_at=CURRENT_TIMESTAMP
	`, b.dialect.placeholder(1), b.dialect.placeholder(2))
	if _, err := b.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("write document %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM documents WHERE doc_key=%s`, b.dialect.placeholder(1))
	if _, err := b.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
