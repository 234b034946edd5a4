package ir

import "fmt"

// RuleID identifies one detection rule.
type RuleID string

const (
	// RuleMissingSigner (R1): a derived-address CPI authority with no
	// signer-checked controlling field.
	RuleMissingSigner RuleID = "R1"

	// RuleMissingOwnershipLink (R2): a persistent account mutated on
	// behalf of a supplied identity with no ownership-equality
	// constraint binding the two.
	RuleMissingOwnershipLink RuleID = "R2"

	// RuleUncheckedAccumulation (R3A): raw add/sub into a persistent
	// cumulative field.
	RuleUncheckedAccumulation RuleID = "R3A"

	// RulePrecisionOrderHazard (R3B): mul/div ordering hazard in an
	// amount computation with no rounding-policy check.
	RulePrecisionOrderHazard RuleID = "R3B"

	// RuleUnvalidatedOracle (R4): external numeric state written from a
	// parameter with no source or staleness validation.
	RuleUnvalidatedOracle RuleID = "R4"

	// RuleReinitializableState (R5): owner attribute overwritten with no
	// init constraint and no uninitialized-sentinel check.
	RuleReinitializableState RuleID = "R5"
)

// Severity ranks findings for ordering and fail thresholds.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRanks orders severities; higher sorts first.
var severityRanks = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the numeric rank of the severity; unknown severities rank
// lowest.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// ParseSeverity validates a severity string.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRanks[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Finding is one reported candidate vulnerability instance. Immutable
// once produced; identity for deduplication is
// (instruction, location, rule id).
type Finding struct {
	Instruction string   `json:"instruction"`
	Location    string   `json:"location"`
	Rule        RuleID   `json:"rule"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
}

// Key returns the deduplication identity of the finding.
func (f Finding) Key() string {
	return f.Instruction + "\x00" + f.Location + "\x00" + string(f.Rule)
}
