package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/migrations"
)

const pgUniqueViolation = "23505"

// PGStore is the ledger backed by PostgreSQL through a pgx pool.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// OpenPostgres connects to dsn, applies pending migrations and returns the
// store. The store owns the pool.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}
	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("ledger: postgres ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return NewPGStore(pool, logger), nil
}

// NewPGStore wraps an already migrated pool.
func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	return &PGStore{pool: pool, logger: logger, now: time.Now}
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("ledger: create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("ledger: run postgres migrations: %w", err)
	}
	return nil
}

func (s *PGStore) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	e, err := prepare(e, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	body, err := encodeBody(e)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, created_at, actor, decision_type, level, verdict, content_hash, body)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.CreatedAt, e.Proposal.Actor, e.Proposal.DecisionType,
		string(e.Level), string(e.Verdict), e.ContentHash, body,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return model.LedgerEntry{}, fmt.Errorf("%w %s", ErrDuplicateID, e.ID)
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return decodeEntry(body, nil)
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	var body, execution []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body, execution FROM ledger_entries WHERE id = $1`, id,
	).Scan(&body, &execution)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: get entry: %w", err)
	}
	return decodeEntry(body, execution)
}

func (s *PGStore) Query(ctx context.Context, q model.LedgerQuery) ([]model.LedgerEntry, error) {
	where, args := buildFilter(q,
		func(i int) string { return "$" + strconv.Itoa(i) },
		func(t time.Time) any { return t.UTC() },
	)
	args = append(args, clampLimit(q.Limit))
	sql := `SELECT body, execution FROM ledger_entries` + where +
		` ORDER BY created_at, id LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var body, execution []byte
		if err := rows.Scan(&body, &execution); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e, err := decodeEntry(body, execution)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return out, nil
}

func (s *PGStore) AttachOutcome(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error) {
	o, err := prepareOutcome(o, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: encode execution: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ledger_entries SET execution = $1 WHERE id = $2 AND execution IS NULL`, raw, id)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: attach outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return model.LedgerEntry{}, err
		}
		return model.LedgerEntry{}, ErrOutcomeExists
	}
	return s.Get(ctx, id)
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count entries: %w", err)
	}
	return n, nil
}

// Purge deletes expired entries and records the purge in one transaction.
// The append-only trigger only permits the delete while warden.allow_purge
// is set for the transaction.
func (s *PGStore) Purge(ctx context.Context, req PurgeRequest) (model.PurgeRecord, error) {
	if err := req.Validate(); err != nil {
		return model.PurgeRecord{}, err
	}
	started := s.now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('warden.allow_purge', 'on', true)`); err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: unlock purge: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM ledger_entries WHERE created_at < $1`, req.Cutoff.UTC())
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: purge entries: %w", err)
	}

	rec, err := newPurgeRecord(req, int(tag.RowsAffected()), started, s.now().UTC())
	if err != nil {
		return model.PurgeRecord{}, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_purges (id, operator, reason, cutoff, deleted, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Operator, rec.Reason, rec.Cutoff, rec.Deleted, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: record purge: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: commit purge: %w", err)
	}
	s.logger.Info("ledger: purge committed", "deleted", rec.Deleted, "operator", rec.Operator, "cutoff", rec.Cutoff)
	return rec, nil
}

func (s *PGStore) PurgeLog(ctx context.Context) ([]model.PurgeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, operator, reason, cutoff, deleted, started_at, ended_at
		 FROM ledger_purges ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query purge log: %w", err)
	}
	defer rows.Close()

	var out []model.PurgeRecord
	for rows.Next() {
		var rec model.PurgeRecord
		if err := rows.Scan(&rec.ID, &rec.Operator, &rec.Reason, &rec.Cutoff, &rec.Deleted, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan purge record: %w", err)
		}
		rec.Cutoff = rec.Cutoff.UTC()
		rec.StartedAt = rec.StartedAt.UTC()
		rec.EndedAt = rec.EndedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
