// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/account/postgres"
	"github.com/novamush/novamush/internal/config"
)

// Backoff schedule for database connects. Exponential from the base,
// capped per attempt, bounded in total so a dead database fails the
// command instead of hanging it.
const (
	connectBackoffBase = 500 * time.Millisecond
	connectBackoffCap  = 5 * time.Second
	connectMaxRetries  = 5
)

func connectBackoff() retry.Backoff {
	b := retry.NewExponential(connectBackoffBase)
	b = retry.WithCappedDuration(connectBackoffCap, b)
	return retry.WithMaxRetries(connectMaxRetries, b)
}

// connectPool opens a pgx pool and pings it until the database answers
// or the backoff budget runs out.
func connectPool(ctx context.Context, db config.Database) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, oops.
			Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}
	if db.MaxConns > 0 {
		poolCfg.MaxConns = int32(db.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.
			Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	if err := retry.Do(ctx, connectBackoff(), func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.Warn("database not ready, retrying", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.
			Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}
	return pool, nil
}

// openMigrator opens the schema migrator, retrying while the database
// comes up. A bad URL burns through the bounded retries and fails.
func openMigrator(ctx context.Context, databaseURL string) (*postgres.Migrator, error) {
	var m *postgres.Migrator
	err := retry.Do(ctx, connectBackoff(), func(_ context.Context) error {
		var openErr error
		m, openErr = postgres.NewMigrator(databaseURL)
		if openErr != nil {
			slog.Warn("migrator connect failed, retrying", "error", openErr)
			return retry.RetryableError(openErr)
		}
		return nil
	})
	if err != nil {
		return nil, oops.
			Code("DB_CONNECT_FAILED").
			With("operation", "open migrator").
			Wrap(err)
	}
	return m, nil
}

func closeMigrator(m SchemaMigrator) {
	if err := m.Close(); err != nil {
		slog.Warn("error closing migrator", "error", err)
	}
}

// requireDatabaseURL rejects commands that only make sense against a
// durable store.
func requireDatabaseURL(conf *config.Config) error {
	if conf.Database.URL == "" {
		return oops.
			Code(config.CodeInvalid).
			New("database.url is required; set it in the config file, with --database-url, or via DATABASE_URL")
	}
	return nil
}

// postgresAccountStore serves repositories off a shared pgx pool.
type postgresAccountStore struct {
	pool       *pgxpool.Pool
	accounts   *postgres.AccountRepository
	characters *postgres.CharacterRepository
}

func newPostgresAccountStore(ctx context.Context, db config.Database) (*postgresAccountStore, error) {
	pool, err := connectPool(ctx, db)
	if err != nil {
		return nil, err
	}
	return &postgresAccountStore{
		pool:       pool,
		accounts:   postgres.NewAccountRepository(pool),
		characters: postgres.NewCharacterRepository(pool),
	}, nil
}

func (s *postgresAccountStore) Accounts() account.Repository            { return s.accounts }
func (s *postgresAccountStore) Characters() account.CharacterRepository { return s.characters }
func (s *postgresAccountStore) Close()                                  { s.pool.Close() }

// memoryAccountStore keeps everything in process memory. Accounts
// vanish on restart; useful for development and tests.
type memoryAccountStore struct {
	accounts   *account.MemoryRepository
	characters *account.MemoryCharacterRepository
}

func (s *memoryAccountStore) Accounts() account.Repository            { return s.accounts }
func (s *memoryAccountStore) Characters() account.CharacterRepository { return s.characters }
func (s *memoryAccountStore) Close()                                  {}

// newAccountStore picks the durable store when a database is
// configured and the in-memory one otherwise.
func newAccountStore(ctx context.Context, db config.Database) (AccountStore, error) {
	if db.URL == "" {
		slog.Info("no database configured, accounts are in-memory")
		return &memoryAccountStore{
			accounts:   account.NewMemoryRepository(),
			characters: account.NewMemoryCharacterRepository(),
		}, nil
	}
	return newPostgresAccountStore(ctx, db)
}
