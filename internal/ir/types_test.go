package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		input string
		field string
		attr  string
	}{
		{"vault", "vault", ""},
		{"vault.authority", "vault", "authority"},
		{"feed.price", "feed", "price"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p := ParsePath(tt.input)
			assert.Equal(t, tt.field, p.Field)
			assert.Equal(t, tt.attr, p.Attr)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestFieldPathIsZero(t *testing.T) {
	assert.True(t, FieldPath{}.IsZero())
	assert.False(t, ParsePath("vault").IsZero())
}

func TestProgramLookups(t *testing.T) {
	p := &Program{
		Name: "vault",
		Contexts: []AccountContext{
			{Name: "Withdraw", Fields: []AccountField{
				{Name: "vault", Kind: KindPersistent, TypeName: "Vault"},
				{Name: "authority", Kind: KindUnchecked},
			}},
		},
		Handlers: []InstructionHandler{
			{Name: "withdraw", Context: "Withdraw", Params: []Param{{Name: "amount", Type: "u64"}}},
		},
	}

	ctx := p.Context("Withdraw")
	require.NotNil(t, ctx)
	assert.Nil(t, p.Context("Deposit"))

	require.NotNil(t, ctx.Field("vault"))
	assert.Equal(t, KindPersistent, ctx.Field("vault").Kind)
	assert.Nil(t, ctx.Field("recipient"))

	h := p.Handler("withdraw")
	require.NotNil(t, h)
	assert.True(t, h.HasParam("amount"))
	assert.False(t, h.HasParam("price"))
	assert.Nil(t, p.Handler("deposit"))
}

func TestAccountFieldConstraints(t *testing.T) {
	f := AccountField{
		Name: "vault",
		Kind: KindPersistent,
		Constraints: []Constraint{
			{Kind: ConstraintMutable},
			{Kind: ConstraintOwnershipEquality, Target: "authority"},
			{Kind: ConstraintDerivedSeeds, Seeds: []string{`"vault"`, "authority"}},
		},
	}

	assert.True(t, f.Has(ConstraintMutable))
	assert.False(t, f.Has(ConstraintInit))

	c := f.Constraint(ConstraintOwnershipEquality)
	require.NotNil(t, c)
	assert.Equal(t, "authority", c.Target)

	seeds := f.Constraint(ConstraintDerivedSeeds)
	require.NotNil(t, seeds)
	assert.Len(t, seeds.Seeds, 2)
}

func TestCPIInvocation(t *testing.T) {
	cpi := CPIInvocation{
		Program:     "token",
		Instruction: "transfer",
		Roles:       map[string]string{"from": "vault", "authority": "vault"},
	}

	field, ok := cpi.Role("authority")
	assert.True(t, ok)
	assert.Equal(t, "vault", field)

	_, ok = cpi.Role("to")
	assert.False(t, ok)

	assert.False(t, cpi.DerivedSigner())
	cpi.SignerSeeds = []string{`"vault"`, "vault.authority"}
	assert.True(t, cpi.DerivedSigner())
}

func TestExprWalkDepthFirst(t *testing.T) {
	// (balance + amount) * 2
	e := Expr{Kind: ExprArith, Arith: &ArithmeticExpr{
		Op: OpMul,
		Operands: []Expr{
			{Kind: ExprArith, Arith: &ArithmeticExpr{
				Op: OpAdd,
				Operands: []Expr{
					{Kind: ExprField, Field: ParsePath("vault.balance")},
					{Kind: ExprParam, Param: "amount"},
				},
			}},
			{Kind: ExprLiteral, Literal: 2},
		},
	}}

	var kinds []ExprKind
	e.Walk(func(n *Expr) bool {
		kinds = append(kinds, n.Kind)
		return true
	})
	assert.Equal(t, []ExprKind{ExprArith, ExprArith, ExprField, ExprParam, ExprLiteral}, kinds)

	// Pruning stops descent into the subtree.
	var visited int
	e.Walk(func(n *Expr) bool {
		visited++
		return n.Kind != ExprArith || n.Arith.Op != OpAdd
	})
	assert.Equal(t, 3, visited)
}

func TestExprReferences(t *testing.T) {
	e := Expr{Kind: ExprArith, Arith: &ArithmeticExpr{
		Op: OpAdd,
		Operands: []Expr{
			{Kind: ExprField, Field: ParsePath("vault.balance")},
			{Kind: ExprParam, Param: "amount"},
		},
	}}

	assert.True(t, e.References(ParsePath("vault.balance")))
	assert.False(t, e.References(ParsePath("vault.authority")))
	// Attribute-less path matches any attribute of the field.
	assert.True(t, e.References(ParsePath("vault")))
	assert.False(t, e.References(ParsePath("feed")))

	assert.True(t, e.ReferencesParam("amount"))
	assert.False(t, e.ReferencesParam("price"))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestFindingKey(t *testing.T) {
	a := Finding{Instruction: "withdraw", Location: "body[0]", Rule: RuleMissingSigner, Severity: SeverityCritical, Message: "x"}
	b := a
	b.Message = "different message, same identity"
	assert.Equal(t, a.Key(), b.Key())

	c := a
	c.Location = "body[1]"
	assert.NotEqual(t, a.Key(), c.Key())
}
