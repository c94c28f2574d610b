package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/metrics"
)

// Postgres реализует domain.AuthStore поверх pgxpool.
// Записи переживают перезапуск процесса и разделяются между репликами.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.AuthStore = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу auth_records, если её ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS auth_records (
    identity         text PRIMARY KEY,
    authenticated    boolean NOT NULL DEFAULT false,
    failed_attempts  int NOT NULL DEFAULT 0,
    blocked_until    timestamptz,
    authenticated_at timestamptz,
    username         text,
    first_name       text,
    updated_at       timestamptz NOT NULL DEFAULT now()
)
`)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "auth_records", start, err)
	return err
}

// Get возвращает запись идентичности, нулевую для неизвестной.
func (p *Postgres) Get(ctx context.Context, id domain.Identity) (domain.AuthRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rec, err := scanRecord(p.pool.QueryRow(ctx, `
SELECT authenticated, failed_attempts, blocked_until, authenticated_at, username, first_name
FROM auth_records WHERE identity = $1
`, id.Key()))
	metrics.ObserveNetworkRequest("postgres", "auth_get", "auth_records", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuthRecord{}, nil
	}
	if err != nil {
		return domain.AuthRecord{}, fmt.Errorf("чтение auth_records: %w", err)
	}
	return rec, nil
}

// Update выполняет read-modify-write в транзакции с блокировкой строки,
// чтобы конкурентные попытки одной идентичности не теряли обновлений.
func (p *Postgres) Update(ctx context.Context, id domain.Identity, fn func(domain.AuthRecord) (domain.AuthRecord, error)) (domain.AuthRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "auth_records", start, err)
	if err != nil {
		return domain.AuthRecord{}, fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	rec, err := scanRecord(tx.QueryRow(ctx, `
SELECT authenticated, failed_attempts, blocked_until, authenticated_at, username, first_name
FROM auth_records WHERE identity = $1 FOR UPDATE
`, id.Key()))
	metrics.ObserveNetworkRequest("postgres", "auth_lock", "auth_records", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		rec, err = domain.AuthRecord{}, nil
	}
	if err != nil {
		return domain.AuthRecord{}, fmt.Errorf("чтение auth_records: %w", err)
	}

	next, err := fn(rec)
	if err != nil {
		return domain.AuthRecord{}, err
	}

	var blockedUntil, authenticatedAt sql.NullTime
	if !next.BlockedUntil.IsZero() {
		blockedUntil = sql.NullTime{Time: next.BlockedUntil, Valid: true}
	}
	if !next.AuthenticatedAt.IsZero() {
		authenticatedAt = sql.NullTime{Time: next.AuthenticatedAt, Valid: true}
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO auth_records (identity, authenticated, failed_attempts, blocked_until, authenticated_at, username, first_name, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), now())
ON CONFLICT (identity) DO UPDATE SET
    authenticated    = EXCLUDED.authenticated,
    failed_attempts  = EXCLUDED.failed_attempts,
    blocked_until    = EXCLUDED.blocked_until,
    authenticated_at = EXCLUDED.authenticated_at,
    username         = EXCLUDED.username,
    first_name       = EXCLUDED.first_name,
    updated_at       = now()
`, id.Key(), next.Authenticated, next.FailedAttempts, blockedUntil, authenticatedAt, next.Username, next.FirstName)
	metrics.ObserveNetworkRequest("postgres", "auth_upsert", "auth_records", start, err)
	if err != nil {
		return domain.AuthRecord{}, fmt.Errorf("запись auth_records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AuthRecord{}, fmt.Errorf("фиксация транзакции: %w", err)
	}
	return next, nil
}

func scanRecord(row pgx.Row) (domain.AuthRecord, error) {
	var (
		rec             domain.AuthRecord
		blockedUntil    sql.NullTime
		authenticatedAt sql.NullTime
		username        sql.NullString
		firstName       sql.NullString
	)
	err := row.Scan(&rec.Authenticated, &rec.FailedAttempts, &blockedUntil, &authenticatedAt, &username, &firstName)
	if err != nil {
		return domain.AuthRecord{}, err
	}
	if blockedUntil.Valid {
		rec.BlockedUntil = blockedUntil.Time
	}
	if authenticatedAt.Valid {
		rec.AuthenticatedAt = authenticatedAt.Time
	}
	rec.Username = username.String
	rec.FirstName = firstName.String
	return rec, nil
}
