package rules

import (
	"fmt"

	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// numericParamTypes are the primitive parameter types treated as
// external numeric input for oracle detection.
var numericParamTypes = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true,
}

// checkUnvalidatedOracle implements R4 (UnvalidatedOracleInput).
//
// External numeric state is detected structurally: a persistent
// attribute written directly from a numeric instruction parameter, in a
// context that supplies an unchecked or signer reference never compared
// against an allow-listed identity, with no staleness comparison against
// the account's previous state. Newly initialized accounts are exempt —
// seeding initial state is not an oracle update.
//
// Whether a confidence-interval companion check should also be required
// is an extension point; only the staleness guard kind is consulted.
func checkUnvalidatedOracle(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding

	for _, op := range g.Assignments() {
		a := op.Assign
		node := g.Field(a.Target.Field)
		if node == nil || node.Field.Kind != ir.KindPersistent || a.Target.Attr == "" {
			continue
		}
		if node.Field.Has(ir.ConstraintInit) {
			continue
		}
		param := directParamSource(g.Handler, &a.Value)
		if param == "" {
			continue
		}

		source := unvalidatedSource(g)
		if source == nil {
			continue
		}
		if g.HasGuard(ir.GuardStaleness, a.Target.Field) {
			continue
		}

		findings = append(findings, ir.Finding{
			Instruction: g.Instruction,
			Location:    a.Target.String(),
			Rule:        ir.RuleUnvalidatedOracle,
			Severity:    ir.SeverityHigh,
			Message: fmt.Sprintf(
				"%s is overwritten directly from parameter %q with source %q never allow-listed and no staleness comparison; any caller sets the price",
				a.Target, param, source.Name),
		})
	}

	return findings
}

// directParamSource returns the parameter name when the expression is a
// bare numeric parameter reference, else "".
func directParamSource(h *ir.InstructionHandler, e *ir.Expr) string {
	if e.Kind != ir.ExprParam {
		return ""
	}
	for _, p := range h.Params {
		if p.Name == e.Param {
			if numericParamTypes[p.Type] {
				return p.Name
			}
			return ""
		}
	}
	// Unknown parameter types are treated as numeric; the compiler has
	// already validated the reference.
	return e.Param
}

// unvalidatedSource returns an identity field that is never checked
// against an allow-listed key, or nil when every source is validated.
func unvalidatedSource(g *graph.ConstraintGraph) *ir.AccountField {
	for _, f := range identityFields(g) {
		if !g.HasGuard(ir.GuardKeyEquality, f.Name) {
			return f
		}
	}
	return nil
}
