package engine

import (
	"sort"
	"sync"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// aggregator is the exclusive-write sink for findings produced by
// concurrent rule evaluation. Submissions are serialized under a mutex;
// Finalize runs the deduplicate and order phases and must be called only
// after all submissions are done.
type aggregator struct {
	mu       sync.Mutex
	findings []ir.Finding
}

func newAggregator() *aggregator {
	return &aggregator{}
}

// Add submits findings. Safe from any goroutine.
func (a *aggregator) Add(findings ...ir.Finding) {
	if len(findings) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = append(a.findings, findings...)
}

// Finalize deduplicates by identity key and orders deterministically:
// severity descending, then instruction name, then rule id, then
// location. The returned slice is the terminal, immutable report.
func (a *aggregator) Finalize() []ir.Finding {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool, len(a.findings))
	out := make([]ir.Finding, 0, len(a.findings))
	for _, f := range a.findings {
		key := f.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		if out[i].Instruction != out[j].Instruction {
			return out[i].Instruction < out[j].Instruction
		}
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].Location < out[j].Location
	})

	return out
}
