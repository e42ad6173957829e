// Command warden-verify recomputes the content hash of every ledger entry
// and reports mismatches together with the Merkle root of the stored hashes.
//
// Exit codes:
//
//	0 = every entry verified
//	1 = at least one entry failed verification
//	2 = runtime error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/config"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// Report is the verification result.
type Report struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
	Root       string     `json:"root"`
	Truncated  bool       `json:"truncated,omitempty"`
}

// Mismatch is one entry whose content no longer matches its hash.
type Mismatch struct {
	ID     string `json:"id"`
	Stored string `json:"stored"`
	Error  string `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("warden-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Defaults()
	var (
		from, to   string
		jsonOutput bool
	)
	cmd.StringVar(&cfg.LedgerBackend, "backend", envOr("WARDEN_LEDGER_BACKEND", cfg.LedgerBackend), "Ledger backend: sqlite or postgres")
	cmd.StringVar(&cfg.SQLitePath, "sqlite", envOr("WARDEN_SQLITE_PATH", cfg.SQLitePath), "SQLite ledger path")
	cmd.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	cmd.StringVar(&from, "from", "", "Only entries created at or after this RFC 3339 time")
	cmd.StringVar(&to, "to", "", "Only entries created before this RFC 3339 time")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	q := model.LedgerQuery{Limit: ledger.MaxQueryLimit}
	for _, f := range []struct {
		raw string
		dst **time.Time
	}{{from, &q.From}, {to, &q.To}} {
		if f.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, f.raw)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: invalid time %q: %v\n", f.raw, err)
			return 2
		}
		*f.dst = &t
	}

	store, err := open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Query(ctx, q)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: query ledger: %v\n", err)
		return 2
	}
	report := verify(entries)
	report.Truncated = len(entries) == q.Limit

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printReport(stdout, report)
	}
	if len(report.Mismatches) > 0 {
		return 1
	}
	return 0
}

func open(ctx context.Context, cfg config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.BackendSQLite:
		return ledger.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("--database-url is required for the postgres backend")
		}
		return ledger.OpenPostgres(ctx, cfg.DatabaseURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	default:
		return nil, fmt.Errorf("backend %q cannot be verified offline", cfg.LedgerBackend)
	}
}

func verify(entries []model.LedgerEntry) Report {
	r := Report{Checked: len(entries), Mismatches: []Mismatch{}, Root: ledger.Root(entries)}
	for _, e := range entries {
		ok, err := ledger.Verify(e)
		if ok && err == nil {
			continue
		}
		m := Mismatch{ID: e.ID.String(), Stored: e.ContentHash}
		if err != nil {
			m.Error = err.Error()
		}
		r.Mismatches = append(r.Mismatches, m)
	}
	return r
}

func printReport(w io.Writer, r Report) {
	if len(r.Mismatches) == 0 {
		_, _ = fmt.Fprintf(w, "ledger verification PASSED\n")
	} else {
		_, _ = fmt.Fprintf(w, "ledger verification FAILED\n")
	}
	_, _ = fmt.Fprintf(w, "Entries checked: %d\n", r.Checked)
	_, _ = fmt.Fprintf(w, "Merkle root:     %s\n", r.Root)
	if r.Truncated {
		_, _ = fmt.Fprintf(w, "Result truncated at %d entries; narrow with --from/--to\n", r.Checked)
	}
	for _, m := range r.Mismatches {
		if m.Error != "" {
			_, _ = fmt.Fprintf(w, "  - %s: %s\n", m.ID, m.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "  - %s: content does not match stored hash %s\n", m.ID, m.Stored)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
