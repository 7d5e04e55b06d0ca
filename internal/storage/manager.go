package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeinmyveins/chatverse/internal/storage/messages"
	"github.com/codeinmyveins/chatverse/internal/storage/migrations"
	"github.com/codeinmyveins/chatverse/internal/storage/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Manager bundles the repositories sharing one database handle.
type Manager interface {
	Users() users.Repository
	Messages() messages.Repository
	Close() error
}

// PostgresManager owns the pgx connection pool and the PostgreSQL-backed
// repositories.
type PostgresManager struct {
	db       *sql.DB
	users    users.Repository
	messages messages.Repository
}

// NewPostgresManager opens the database, verifies connectivity, applies the
// embedded migrations, and wires the repositories.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := &PostgresManager{
		db:       db,
		users:    users.NewPostgresRepository(db),
		messages: messages.NewPostgresRepository(db),
	}

	if err := m.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}

func (m *PostgresManager) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresManager) Users() users.Repository {
	return m.users
}

func (m *PostgresManager) Messages() messages.Repository {
	return m.messages
}

// Close releases the underlying connection pool.
func (m *PostgresManager) Close() error {
	return m.db.Close()
}
