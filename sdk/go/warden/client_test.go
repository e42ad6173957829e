package warden

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockServer creates an httptest server that mimics the Warden API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: serverURL + "/", AdminAPIKey: "admin-key", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
}

func TestEvaluate(t *testing.T) {
	id := uuid.New()
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/evaluate": func(w http.ResponseWriter, r *http.Request) {
			var p Proposal
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Errorf("decode proposal: %v", err)
			}
			if p.Actor != "content-engine" || p.EstimatedRisk == nil || *p.EstimatedRisk != 0.2 {
				t.Errorf("unexpected proposal: %+v", p)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("admin key must not be sent on non-admin routes")
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": Verdict{
				DecisionID: &id,
				Outcome:    OutcomeApproved,
				Level:      "STANDARD",
				Validation: &Validation{Approved: true, Status: "APPROVED", RiskScore: 0.12},
			}})
		},
	})

	v, err := newTestClient(t, srv.URL).Evaluate(context.Background(), Proposal{
		Actor:           "content-engine",
		DecisionType:    "post_content",
		Chosen:          "publish carousel",
		EstimatedRisk:   Float(0.2),
		EstimatedImpact: Float(0.15),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Approved() || *v.DecisionID != id || v.Validation.RiskScore != 0.12 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestRecordExecutionConflict(t *testing.T) {
	id := uuid.New()
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/decisions/{id}/execution": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") != id.String() {
				t.Errorf("unexpected id %s", r.PathValue("id"))
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": map[string]any{"code": "CONFLICT", "message": "execution outcome already recorded"},
			})
		},
	})

	_, err := newTestClient(t, srv.URL).RecordExecution(context.Background(), id, ExecutionExecuted, "")
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "CONFLICT" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListDecisionsEncodesFilters(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/decisions": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("actor") != "engine" || q.Get("verdict") != "REJECTED" ||
				q.Get("from") != "2026-03-01T00:00:00Z" || q.Get("limit") != "10" || q.Has("level") {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data":  []Entry{{ID: uuid.New(), Verdict: OutcomeRejected}},
				"count": 1,
			})
		},
	})

	entries, err := newTestClient(t, srv.URL).ListDecisions(context.Background(), &ListFilters{
		Actor: "engine", Verdict: OutcomeRejected, From: &from, Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(entries) != 1 || entries[0].Verdict != OutcomeRejected {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestPurgeSendsAdminKey(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/admin/retention/purge": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer admin-key" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": "UNAUTHORIZED", "message": "bad key"},
				})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": PurgeResult{DryRun: true, Deleted: 4}})
		},
	})

	res, err := newTestClient(t, srv.URL).Purge(context.Background(), PurgeRequest{Operator: "ops", Reason: "check", DryRun: true})
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if !res.DryRun || res.Deleted != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestErrorWithoutEnvelope(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
	})

	_, err := newTestClient(t, srv.URL).Health(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Code != "Bad Gateway" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if IsNotFound(err) || IsRateLimited(err) {
		t.Fatal("status helpers must not match 502")
	}
}

func TestDailyReportDay(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/reports/daily": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": DailyReport{Day: r.URL.Query().Get("day"), Total: 2}})
		},
	})

	rep, err := newTestClient(t, srv.URL).DailyReport(context.Background(), time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DailyReport: %v", err)
	}
	if rep.Day != "2026-03-02" || rep.Total != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
