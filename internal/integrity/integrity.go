// Package integrity provides tamper-evident hashing and Merkle tree
// construction for the decision ledger. All functions are pure and
// deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
)

// HashPrefix marks the current hash format: SHA-256 over the RFC 8785
// canonical JSON of the entry.
const HashPrefix = "v1:"

// ComputeEntryHash returns the versioned content hash of e. ContentHash and
// Execution are excluded so the hash is stable across the later outcome
// attachment.
func ComputeEntryHash(e model.LedgerEntry) (string, error) {
	e.ContentHash = ""
	e.Execution = nil

	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("integrity: marshal entry: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("integrity: canonicalize entry: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}

// VerifyEntryHash reports whether e.ContentHash matches its recomputed hash.
// Unknown hash versions never verify.
func VerifyEntryHash(e model.LedgerEntry) (bool, error) {
	if !strings.HasPrefix(e.ContentHash, HashPrefix) {
		return false, nil
	}
	want, err := ComputeEntryHash(e)
	if err != nil {
		return false, err
	}
	return e.ContentHash == want, nil
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix is a domain separator for internal Merkle tree nodes (per RFC 6962),
// ensuring internal node hashes can never collide with leaf content hashes.
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the root.
// Leaves must be sorted lexicographically by the caller for determinism.
// If leaves is empty, returns an empty string.
// If leaves has one element, the root is that element.
// Odd-length levels hash the last node with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0]
}
