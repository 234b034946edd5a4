package rules

import (
	"fmt"

	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// checkUncheckedAccumulation implements R3A (UncheckedAccumulation).
//
// A raw add or sub writing into a persistent cumulative field silently
// wraps on overflow or underflow and corrupts accounting state
// permanently. "Cumulative" is detected structurally: the expression
// feeds the same stored attribute it reads. Guarded arithmetic (checked
// or saturating primitives whose failure case is propagated) is exempt.
func checkUncheckedAccumulation(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding

	for _, op := range g.Assignments() {
		a := op.Assign
		node := g.Field(a.Target.Field)
		if node == nil || node.Field.Kind != ir.KindPersistent || a.Target.Attr == "" {
			continue
		}
		if !a.Value.References(a.Target) {
			continue
		}
		if hazard := rawAccumulation(&a.Value); hazard != nil {
			findings = append(findings, ir.Finding{
				Instruction: g.Instruction,
				Location:    a.Target.String(),
				Rule:        ir.RuleUncheckedAccumulation,
				Severity:    ir.SeverityHigh,
				Message: fmt.Sprintf(
					"raw %s accumulates into %s with no overflow guard; a wrapping result is stored permanently",
					hazard.Op, a.Target),
			})
		}
	}

	return findings
}

// rawAccumulation returns the first unguarded add/sub node in the
// expression tree, or nil.
func rawAccumulation(e *ir.Expr) *ir.ArithmeticExpr {
	var hit *ir.ArithmeticExpr
	e.Walk(func(n *ir.Expr) bool {
		if n.Kind != ir.ExprArith || n.Arith == nil {
			return true
		}
		ar := n.Arith
		if (ar.Op == ir.OpAdd || ar.Op == ir.OpSub) && !ar.Guarded {
			hit = ar
			return false
		}
		return true
	})
	return hit
}

// checkPrecisionOrderHazard implements R3B (PrecisionOrderHazard).
//
// A mul directly composed with a div in the same expression tree feeding
// a persistent write or a CPI amount loses value systematically
// (division-first truncates toward zero). The finding is suppressed when
// the expression is guarded or the handler carries an explicit
// minimum-amount / rounding-policy check.
func checkPrecisionOrderHazard(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding

	if g.HasGuard(ir.GuardMinAmount, "") {
		return nil
	}

	for _, op := range g.Ops {
		var expr *ir.Expr
		var location string
		switch op.Kind {
		case graph.OpAssign:
			node := g.Field(op.Assign.Target.Field)
			if node == nil || node.Field.Kind != ir.KindPersistent {
				continue
			}
			expr = &op.Assign.Value
			location = op.Assign.Target.String()
		case graph.OpCPI:
			if op.Invoke.Amount == nil {
				continue
			}
			expr = op.Invoke.Amount
			location = op.Location()
		}

		if mulDivAdjacent(expr) {
			findings = append(findings, ir.Finding{
				Instruction: g.Instruction,
				Location:    location,
				Rule:        ir.RulePrecisionOrderHazard,
				Severity:    ir.SeverityMedium,
				Message:     "mul/div composed in one amount expression with no rounding-policy or minimum-amount check; value is lost to truncation",
			})
		}
	}

	return findings
}

// mulDivAdjacent reports whether the tree contains an unguarded mul node
// with a div as a direct operand, or vice versa.
func mulDivAdjacent(e *ir.Expr) bool {
	found := false
	e.Walk(func(n *ir.Expr) bool {
		if n.Kind != ir.ExprArith || n.Arith == nil || n.Arith.Guarded {
			return true
		}
		outer := n.Arith.Op
		if outer != ir.OpMul && outer != ir.OpDiv {
			return true
		}
		for i := range n.Arith.Operands {
			opnd := &n.Arith.Operands[i]
			if opnd.Kind != ir.ExprArith || opnd.Arith == nil {
				continue
			}
			inner := opnd.Arith.Op
			if (outer == ir.OpMul && inner == ir.OpDiv) || (outer == ir.OpDiv && inner == ir.OpMul) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
