package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/migrations"
)

// SQLStore is the embedded ledger backed by SQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway ledger.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping sqlite: %w", err)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.SQLite())
	if err != nil {
		return fmt.Errorf("ledger: create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("ledger: run sqlite migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	e, err := prepare(e, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	body, err := encodeBody(e)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, created_at, actor, decision_type, level, verdict, content_hash, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.CreatedAt.UnixMicro(), e.Proposal.Actor, e.Proposal.DecisionType,
		string(e.Level), string(e.Verdict), e.ContentHash, string(body),
	)
	if isSQLiteUniqueViolation(err) {
		return model.LedgerEntry{}, fmt.Errorf("%w %s", ErrDuplicateID, e.ID)
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return decodeEntry(body, nil)
}

func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (model.LedgerEntry, error) {
	var body string
	var execution sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT body, execution FROM ledger_entries WHERE id = ?`, id.String(),
	).Scan(&body, &execution)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: get entry: %w", err)
	}
	return decodeEntry([]byte(body), []byte(execution.String))
}

func (s *SQLStore) Query(ctx context.Context, q model.LedgerQuery) ([]model.LedgerEntry, error) {
	where, args := buildFilter(q, func(int) string { return "?" }, func(t time.Time) any { return t.UnixMicro() })
	args = append(args, clampLimit(q.Limit))
	rows, err := s.db.QueryContext(ctx,
		`SELECT body, execution FROM ledger_entries`+where+` ORDER BY created_at, id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var body string
		var execution sql.NullString
		if err := rows.Scan(&body, &execution); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e, err := decodeEntry([]byte(body), []byte(execution.String))
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

func (s *SQLStore) AttachOutcome(ctx context.Context, id uuid.UUID, o model.ExecutionOutcome) (model.LedgerEntry, error) {
	o, err := prepareOutcome(o, s.now())
	if err != nil {
		return model.LedgerEntry{}, err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: encode execution: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger_entries SET execution = ? WHERE id = ? AND execution IS NULL`,
		string(raw), id.String(),
	)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: attach outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger: attach outcome: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return model.LedgerEntry{}, err
		}
		return model.LedgerEntry{}, ErrOutcomeExists
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count entries: %w", err)
	}
	return n, nil
}

// Purge deletes expired entries and records the purge in one transaction.
func (s *SQLStore) Purge(ctx context.Context, req PurgeRequest) (model.PurgeRecord, error) {
	if err := req.Validate(); err != nil {
		return model.PurgeRecord{}, err
	}
	started := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	guard := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_purge_guard (id) VALUES (?)`, guard); err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: unlock purge: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE created_at < ?`, req.Cutoff.UnixMicro())
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: purge entries: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: purge entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_purge_guard WHERE id = ?`, guard); err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: relock purge: %w", err)
	}

	rec, err := newPurgeRecord(req, int(deleted), started, s.now().UTC())
	if err != nil {
		return model.PurgeRecord{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_purges (id, operator, reason, cutoff, deleted, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Operator, rec.Reason, rec.Cutoff.UnixMicro(), rec.Deleted,
		rec.StartedAt.UnixMicro(), rec.EndedAt.UnixMicro(),
	)
	if err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: record purge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.PurgeRecord{}, fmt.Errorf("ledger: commit purge: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) PurgeLog(ctx context.Context) ([]model.PurgeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operator, reason, cutoff, deleted, started_at, ended_at
		 FROM ledger_purges ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query purge log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PurgeRecord
	for rows.Next() {
		var (
			rec                      model.PurgeRecord
			id                       string
			cutoff, started, endedAt int64
		)
		if err := rows.Scan(&id, &rec.Operator, &rec.Reason, &cutoff, &rec.Deleted, &started, &endedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan purge record: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("ledger: parse purge id: %w", err)
		}
		rec.Cutoff = time.UnixMicro(cutoff).UTC()
		rec.StartedAt = time.UnixMicro(started).UTC()
		rec.EndedAt = time.UnixMicro(endedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }

// buildFilter renders the WHERE clause for q. placeholder maps the 1-based
// argument position to the driver's syntax.
func buildFilter(q model.LedgerQuery, placeholder func(int) string, timeArg func(time.Time) any) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if q.Actor != "" {
		add("actor = %s", q.Actor)
	}
	if q.DecisionType != "" {
		add("decision_type = %s", q.DecisionType)
	}
	if q.Level != "" {
		add("level = %s", string(q.Level))
	}
	if q.Verdict != "" {
		add("verdict = %s", string(q.Verdict))
	}
	if q.From != nil {
		add("created_at >= %s", timeArg(*q.From))
	}
	if q.To != nil {
		add("created_at < %s", timeArg(*q.To))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}
