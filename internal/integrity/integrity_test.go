package integrity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

func sampleEntry() model.LedgerEntry {
	risk, impact := 0.2, 0.15
	return model.LedgerEntry{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		CreatedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Proposal: model.ProposedDecision{
			Actor:           "content-engine",
			DecisionType:    "post_content",
			EstimatedRisk:   &risk,
			EstimatedImpact: &impact,
			Context:         model.DecisionContext{Extensions: map[string]any{"b": 1, "a": "x"}},
		},
		Level:         model.LevelStandard,
		Validation:    model.ValidationResult{Status: model.StatusApproved, Approved: true, RiskScore: 0.12},
		Verdict:       model.OutcomeApproved,
		VerdictReason: "approved: risk score 0.12",
	}
}

func TestComputeEntryHash_Deterministic(t *testing.T) {
	e := sampleEntry()
	h1, err := ComputeEntryHash(e)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := ComputeEntryHash(e)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
	if !strings.HasPrefix(h1, HashPrefix) || len(h1) != len(HashPrefix)+64 {
		t.Fatalf("expected %s-prefixed 64-char hex SHA-256, got %q", HashPrefix, h1)
	}
}

func TestComputeEntryHash_IgnoresHashAndExecution(t *testing.T) {
	e := sampleEntry()
	before, _ := ComputeEntryHash(e)

	e.ContentHash = "v1:whatever"
	e.Execution = &model.ExecutionOutcome{Status: model.ExecutionExecuted, ReportedAt: time.Now()}
	after, _ := ComputeEntryHash(e)

	if before != after {
		t.Fatal("content hash and execution outcome must not affect the hash")
	}
}

func TestComputeEntryHash_SurvivesJSONRoundTrip(t *testing.T) {
	e := sampleEntry()
	want, _ := ComputeEntryHash(e)

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back model.LedgerEntry
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, _ := ComputeEntryHash(back)
	if got != want {
		t.Fatalf("hash changed across storage round trip: %q != %q", got, want)
	}
}

func TestVerifyEntryHash(t *testing.T) {
	e := sampleEntry()
	e.ContentHash, _ = ComputeEntryHash(e)

	ok, err := VerifyEntryHash(e)
	if err != nil || !ok {
		t.Fatalf("verification should succeed for an untouched entry (ok=%v err=%v)", ok, err)
	}

	tampered := e
	tampered.Verdict = model.OutcomeRejected
	if ok, _ := VerifyEntryHash(tampered); ok {
		t.Fatal("verification should fail for a changed verdict")
	}

	unknown := e
	unknown.ContentHash = "v9:" + strings.TrimPrefix(e.ContentHash, HashPrefix)
	if ok, _ := VerifyEntryHash(unknown); ok {
		t.Fatal("unknown hash versions must not verify")
	}
}

func TestBuildMerkleRoot_Empty(t *testing.T) {
	root := BuildMerkleRoot(nil)
	if root != "" {
		t.Fatalf("empty input should produce empty root, got %q", root)
	}
}

func TestBuildMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := "v1:abc123"
	root := BuildMerkleRoot([]string{leaf})
	if root != leaf {
		t.Fatalf("single leaf should be the root: got %q, want %q", root, leaf)
	}
}

func TestBuildMerkleRoot_Deterministic(t *testing.T) {
	leaves := []string{"hash_a", "hash_b", "hash_c", "hash_d"}

	r1 := BuildMerkleRoot(leaves)
	r2 := BuildMerkleRoot(leaves)

	if r1 != r2 {
		t.Fatalf("Merkle root not deterministic: %q != %q", r1, r2)
	}
	if len(r1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(r1))
	}
}

func TestBuildMerkleRoot_OrderMatters(t *testing.T) {
	r1 := BuildMerkleRoot([]string{"a", "b", "c"})
	r2 := BuildMerkleRoot([]string{"b", "a", "c"})

	if r1 == r2 {
		t.Fatal("different leaf ordering should produce different roots")
	}
}
