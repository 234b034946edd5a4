package rules

import (
	"fmt"

	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// ownerAttrs are the stored attribute names treated as account custody.
var ownerAttrs = map[string]bool{
	"authority": true,
	"owner":     true,
	"admin":     true,
}

// checkReinitializableState implements R5 (ReinitializableState).
//
// An instruction that overwrites the owner attribute of a persistent
// account without an init constraint on the field and without an
// explicit uninitialized-sentinel (or discriminant) check lets any
// caller reset custody of an already-initialized account.
func checkReinitializableState(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding

	for _, op := range g.Assignments() {
		a := op.Assign
		if !ownerAttrs[a.Target.Attr] {
			continue
		}
		node := g.Field(a.Target.Field)
		if node == nil || node.Field.Kind != ir.KindPersistent {
			continue
		}
		if node.Field.Has(ir.ConstraintInit) {
			continue
		}
		if g.HasGuard(ir.GuardUninitialized, a.Target.Field) {
			continue
		}

		findings = append(findings, ir.Finding{
			Instruction: g.Instruction,
			Location:    a.Target.String(),
			Rule:        ir.RuleReinitializableState,
			Severity:    ir.SeverityCritical,
			Message: fmt.Sprintf(
				"%s is overwritten with no init constraint and no uninitialized-sentinel check; any caller can reset custody of the account",
				a.Target),
		})
	}

	return findings
}
