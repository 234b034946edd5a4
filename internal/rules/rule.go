package rules

import (
	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// CheckFunc evaluates one rule over one instruction's constraint graph.
// It must be pure and total: any well-formed graph produces zero or more
// findings and never an error.
type CheckFunc func(*graph.ConstraintGraph) []ir.Finding

// Rule pairs a rule identifier with its check function. Severity is the
// severity the rule assigns to its findings.
type Rule struct {
	ID       ir.RuleID
	Name     string
	Severity ir.Severity
	Check    CheckFunc
}

// Registry returns the full rule set in fixed declaration order. The
// order never varies between runs; finding order is decided by the
// aggregator, not by registry position.
func Registry() []Rule {
	return []Rule{
		{ID: ir.RuleMissingSigner, Name: "MissingSignerOnAuthority", Severity: ir.SeverityCritical, Check: checkMissingSigner},
		{ID: ir.RuleMissingOwnershipLink, Name: "MissingOwnershipLink", Severity: ir.SeverityHigh, Check: checkMissingOwnershipLink},
		{ID: ir.RuleUncheckedAccumulation, Name: "UncheckedAccumulation", Severity: ir.SeverityHigh, Check: checkUncheckedAccumulation},
		{ID: ir.RulePrecisionOrderHazard, Name: "PrecisionOrderHazard", Severity: ir.SeverityMedium, Check: checkPrecisionOrderHazard},
		{ID: ir.RuleUnvalidatedOracle, Name: "UnvalidatedOracleInput", Severity: ir.SeverityHigh, Check: checkUnvalidatedOracle},
		{ID: ir.RuleReinitializableState, Name: "ReinitializableState", Severity: ir.SeverityCritical, Check: checkReinitializableState},
	}
}

// identityFields returns context fields that can carry a caller-supplied
// identity: signers and unchecked references, excluding derived-address
// accounts (those identify the program, not a caller).
func identityFields(g *graph.ConstraintGraph) []*ir.AccountField {
	var out []*ir.AccountField
	for _, name := range g.FieldOrder {
		f := g.Fields[name].Field
		if f.Kind != ir.KindSigner && f.Kind != ir.KindUnchecked {
			continue
		}
		if f.Has(ir.ConstraintDerivedSeeds) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// signerChecked reports whether the field is proven to have signed:
// declared as a signer outright or carrying a requires_signer
// constraint.
func signerChecked(f *ir.AccountField) bool {
	return f.Kind == ir.KindSigner || f.Has(ir.ConstraintRequiresSigner)
}

// controllingFields resolves the logical controlling parties of a
// derived-address invocation: for every seed expression that names a
// stored attribute (vault.authority), the context field named after that
// attribute, plus any ownership-equality target declared on the
// persistent account supplying the seeds. Seed references to an
// account's own key or bump resolve to the account itself.
func controllingFields(g *graph.ConstraintGraph, cpi *ir.CPIInvocation) []*ir.AccountField {
	var out []*ir.AccountField
	seen := make(map[string]bool)
	add := (func(f *ir.AccountField) {
		if f != nil && !seen[f.Name] {
			seen[f.Name] = true
			out = append(out, f)
		}
	})

	for _, ref := range graph.SeedRefs(cpi.SignerSeeds) {
		node := g.Field(ref.Field)
		if node == nil {
			continue
		}
		switch ref.Attr {
		case "", "key":
			add(node.Field)
		default:
			if n := g.Field(ref.Attr); n != nil {
				add(n.Field)
			}
			if c := node.Field.Constraint(ir.ConstraintOwnershipEquality); c != nil {
				if n := g.Field(c.Target); n != nil {
					add(n.Field)
				}
			}
		}
	}
	return out
}
