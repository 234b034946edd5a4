package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

func TestAggregatorDedup(t *testing.T) {
	agg := newAggregator()

	f := ir.Finding{Instruction: "withdraw", Location: "body[0]", Rule: ir.RuleMissingSigner, Severity: ir.SeverityCritical, Message: "first"}
	dup := f
	dup.Message = "second wording, same identity"

	agg.Add(f)
	agg.Add(dup)

	out := agg.Finalize()
	require.Len(t, out, 1)
	// First submission wins.
	assert.Equal(t, "first", out[0].Message)
}

func TestAggregatorOrdering(t *testing.T) {
	agg := newAggregator()
	agg.Add(
		ir.Finding{Instruction: "withdraw", Location: "vault", Rule: ir.RuleMissingOwnershipLink, Severity: ir.SeverityHigh},
		ir.Finding{Instruction: "withdraw", Location: "body[0]", Rule: ir.RuleMissingSigner, Severity: ir.SeverityCritical},
		ir.Finding{Instruction: "deposit", Location: "vault.total", Rule: ir.RuleUncheckedAccumulation, Severity: ir.SeverityHigh},
		ir.Finding{Instruction: "swap", Location: "body[1]", Rule: ir.RulePrecisionOrderHazard, Severity: ir.SeverityMedium},
		ir.Finding{Instruction: "swap", Location: "body[0]", Rule: ir.RulePrecisionOrderHazard, Severity: ir.SeverityMedium},
	)

	out := agg.Finalize()
	require.Len(t, out, 5)
	assert.Equal(t, ir.SeverityCritical, out[0].Severity)
	assert.Equal(t, "deposit", out[1].Instruction)
	assert.Equal(t, "withdraw", out[2].Instruction)
	// Location is the final tiebreak.
	assert.Equal(t, "body[0]", out[3].Location)
	assert.Equal(t, "body[1]", out[4].Location)
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	agg := newAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Identical submissions from every goroutine collapse to one.
			agg.Add(ir.Finding{Instruction: "withdraw", Location: "body[0]", Rule: ir.RuleMissingSigner, Severity: ir.SeverityCritical})
		}()
	}
	wg.Wait()

	assert.Len(t, agg.Finalize(), 1)
}

func TestAggregatorEmpty(t *testing.T) {
	assert.Empty(t, newAggregator().Finalize())
}
