package rules

import (
	"fmt"

	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// checkMissingSigner implements R1 (MissingSignerOnAuthority).
//
// A CPI authorized by a derived address means the program signs for
// itself; the only identity check left is whoever the seed data says the
// controlling party is. If no controlling field is itself a signer (or
// requires_signer), an unauthenticated caller can trigger the transfer.
func checkMissingSigner(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding

	for _, op := range g.CPIs() {
		cpi := op.Invoke
		if !cpi.DerivedSigner() {
			continue
		}
		if _, ok := cpi.Role("authority"); !ok {
			continue
		}

		controllers := controllingFields(g, cpi)
		proven := false
		for _, f := range controllers {
			if signerChecked(f) {
				proven = true
				break
			}
		}
		if proven {
			continue
		}

		msg := "derived-address authority signs the transfer, but no controlling field is a verified signer; any caller can trigger it"
		if len(controllers) > 0 {
			msg = fmt.Sprintf("derived-address authority signs the transfer, but controlling field %q is not a verified signer; any caller can trigger it", controllers[0].Name)
		}
		findings = append(findings, ir.Finding{
			Instruction: g.Instruction,
			Location:    op.Location(),
			Rule:        ir.RuleMissingSigner,
			Severity:    ir.SeverityCritical,
			Message:     msg,
		})
	}

	return findings
}

// checkMissingOwnershipLink implements R2 (MissingOwnershipLink).
//
// Two shapes are covered, and both fire independently of signer status:
//
//  1. A derived-signer CPI draws its seeds from a persistent account
//     while the context supplies a separate identity field claimed to be
//     that account's owner. The persistent account must declare an
//     ownership-equality constraint tying the identity to its stored
//     owner attribute.
//  2. An assignment mutates an attribute of a persistent account whose
//     context supplies an identity field of the same name (the claimed
//     current owner) with no ownership-equality link.
//
// Fields tagged as newly initialized are skipped: a fresh account has no
// recorded owner to link against.
func checkMissingOwnershipLink(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding
	flagged := make(map[string]bool)

	flag := func(persistent *ir.AccountField, identity *ir.AccountField) {
		if flagged[persistent.Name] {
			return
		}
		flagged[persistent.Name] = true
		findings = append(findings, ir.Finding{
			Instruction: g.Instruction,
			Location:    persistent.Name,
			Rule:        ir.RuleMissingOwnershipLink,
			Severity:    ir.SeverityHigh,
			Message: fmt.Sprintf(
				"no ownership-equality constraint ties supplied identity %q to the stored owner of %q; any matching identity is accepted",
				identity.Name, persistent.Name),
		})
	}

	// Shape 1: derived-signer CPIs over program custody.
	for _, op := range g.CPIs() {
		cpi := op.Invoke
		if !cpi.DerivedSigner() {
			continue
		}
		for _, ref := range graph.SeedRefs(cpi.SignerSeeds) {
			node := g.Field(ref.Field)
			if node == nil || node.Field.Kind != ir.KindPersistent {
				continue
			}
			p := node.Field
			if p.Has(ir.ConstraintInit) {
				continue
			}
			// The identity the mutation depends on is whoever the seed
			// data claims controls p.
			for _, f := range controllingFields(g, cpi) {
				if f.Name == p.Name || (f.Kind != ir.KindSigner && f.Kind != ir.KindUnchecked) {
					continue
				}
				if !hasOwnershipLink(p, f.Name) {
					flag(p, f)
					break
				}
			}
		}
	}

	// Shape 2: attribute writes gated by a same-named identity field.
	for _, op := range g.Assignments() {
		target := op.Assign.Target
		node := g.Field(target.Field)
		if node == nil || node.Field.Kind != ir.KindPersistent || target.Attr == "" {
			continue
		}
		p := node.Field
		if p.Has(ir.ConstraintInit) {
			continue
		}
		identity := g.Field(target.Attr)
		if identity == nil {
			continue
		}
		f := identity.Field
		if f.Kind != ir.KindSigner && f.Kind != ir.KindUnchecked {
			continue
		}
		if !hasOwnershipLink(p, f.Name) {
			flag(p, f)
		}
	}

	return findings
}

// hasOwnershipLink reports whether p declares an ownership-equality
// constraint targeting the named identity field.
func hasOwnershipLink(p *ir.AccountField, identity string) bool {
	for _, c := range p.Constraints {
		if c.Kind == ir.ConstraintOwnershipEquality && c.Target == identity {
			return true
		}
	}
	return false
}
