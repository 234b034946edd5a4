package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainFinding = "solaudit/finding/v1"
	DomainProgram = "solaudit/program/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FindingID computes a content-addressed ID for a finding. The ID is
// stable across runs and parallelism degrees given the same finding,
// which makes store writes idempotent.
func FindingID(f Finding) (string, error) {
	obj := map[string]any{
		"instruction": f.Instruction,
		"location":    f.Location,
		"rule":        string(f.Rule),
		"severity":    string(f.Severity),
		"message":     f.Message,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FindingID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFinding, canonical), nil
}

// ProgramHash computes a content-addressed hash of a program's structural
// model, used to correlate recorded scans with fixture revisions.
// encoding/json sorts map keys, so the serialization is deterministic.
func ProgramHash(p *Program) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, data), nil
}

// MustFindingID is like FindingID but panics on error. Use only in tests
// or when inputs are known to be valid.
func MustFindingID(f Finding) string {
	id, err := FindingID(f)
	if err != nil {
		panic(err)
	}
	return id
}
