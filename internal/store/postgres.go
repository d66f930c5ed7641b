// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/holoauth/internal/auth"
)

// poolIface is the subset of pgxpool.Pool used by the store.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConnectOptions controls the connection retry loop.
type ConnectOptions struct {
	// BaseDelay is the first backoff interval. Defaults to 500ms.
	BaseDelay time.Duration
	// MaxRetries bounds the number of retries after the first attempt. Defaults to 5.
	MaxRetries uint64
}

// Connect opens a pool and pings it, retrying with exponential backoff while
// the database is unreachable. A malformed DSN fails immediately.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STATE_CONNECT_FAILED").With("operation", "parse dsn").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.BaseDelay))

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg.Copy())
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.WarnContext(ctx, "database not reachable, retrying",
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("STATE_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}

// PostgresStateStore implements StateStore on two tables: auth_settings
// (a single row) and auth_accounts.
type PostgresStateStore struct {
	pool poolIface
}

// NewPostgresStateStore creates a store backed by pool.
func NewPostgresStateStore(pool poolIface) *PostgresStateStore {
	return &PostgresStateStore{pool: pool}
}

const accountColumns = `identity, role, credential_hash, token_value, token_issued_at, created_at_tick`

// Load reads the snapshot. It returns ErrStateAbsent when the settings row
// has never been written.
func (s *PostgresStateStore) Load(ctx context.Context) (*auth.State, error) {
	var settings auth.Settings
	var lastTick int64
	err := s.pool.QueryRow(ctx,
		`SELECT verbose, bootstrapped, last_tick FROM auth_settings WHERE id = 1`,
	).Scan(&settings.Verbose, &settings.Bootstrapped, &lastTick)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStateAbsent
	}
	if err != nil {
		return nil, pgError(err, "load settings")
	}
	settings.LastTick = auth.Tick(lastTick) //nolint:gosec // column has CHECK (last_tick >= 0)

	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM auth_accounts ORDER BY identity`)
	if err != nil {
		return nil, pgError(err, "load accounts")
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("STATE_LOAD_FAILED").With("operation", "scan account row").Wrap(err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STATE_LOAD_FAILED").With("operation", "iterate accounts").Wrap(err)
	}

	return auth.Restore(accounts, settings)
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		acct      auth.Account
		token     pgtype.Text
		issuedAt  pgtype.Int8
		createdAt int64
	)
	if err := row.Scan(&acct.Identity, &acct.Role, &acct.CredentialHash, &token, &issuedAt, &createdAt); err != nil {
		return nil, err
	}
	acct.CreatedAt = auth.Tick(createdAt) //nolint:gosec // ticks are written from uint64 and never negative
	if token.Valid {
		acct.Token = &auth.Token{
			Value:    token.String,
			IssuedAt: auth.Tick(issuedAt.Int64), //nolint:gosec // see above
		}
	}
	return &acct, nil
}

// Save replaces the persisted snapshot with state inside one transaction.
// Accounts absent from state are deleted first so their token values are
// free before the upserts run.
func (s *PostgresStateStore) Save(ctx context.Context, state *auth.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgError(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `
		INSERT INTO auth_settings (id, verbose, bootstrapped, last_tick)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			verbose = EXCLUDED.verbose,
			bootstrapped = EXCLUDED.bootstrapped,
			last_tick = EXCLUDED.last_tick`,
		state.Settings.Verbose, state.Settings.Bootstrapped, int64(state.Settings.LastTick), //nolint:gosec // ticks fit in int64
	); err != nil {
		return pgError(err, "save settings")
	}

	accounts := state.AccountList()
	identities := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		identities = append(identities, acct.Identity)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM auth_accounts WHERE NOT (identity = ANY($1))`, identities,
	); err != nil {
		return pgError(err, "delete removed accounts")
	}

	// Clear token values before rewriting them so a value moving between
	// rows never trips the unique constraint mid-transaction.
	if _, err := tx.Exec(ctx,
		`UPDATE auth_accounts SET token_value = NULL, token_issued_at = NULL WHERE token_value IS NOT NULL`,
	); err != nil {
		return pgError(err, "clear tokens")
	}

	for _, acct := range accounts {
		var token pgtype.Text
		var issuedAt pgtype.Int8
		if acct.Token != nil {
			token = pgtype.Text{String: acct.Token.Value, Valid: true}
			issuedAt = pgtype.Int8{Int64: int64(acct.Token.IssuedAt), Valid: true} //nolint:gosec // ticks fit in int64
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO auth_accounts (`+accountColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (identity) DO UPDATE SET
				role = EXCLUDED.role,
				credential_hash = EXCLUDED.credential_hash,
				token_value = EXCLUDED.token_value,
				token_issued_at = EXCLUDED.token_issued_at,
				created_at_tick = EXCLUDED.created_at_tick`,
			acct.Identity, acct.Role, acct.CredentialHash, token, issuedAt, int64(acct.CreatedAt), //nolint:gosec // ticks fit in int64
		); err != nil {
			return oops.With("identity", acct.Identity).Wrap(pgError(err, "save account"))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return pgError(err, "commit")
	}
	return nil
}

// pgError maps a driver error to an oops error. A missing table means the
// migrations have not been applied.
func pgError(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code("STATE_SCHEMA_MISSING").
			With("operation", operation).
			Hint("run `holoauth migrate up`").
			Wrap(err)
	}
	return oops.Code("STATE_STORE_FAILED").With("operation", operation).Wrap(err)
}
