package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFinding() Finding {
	return Finding{
		Instruction: "withdraw",
		Location:    "body[0]",
		Rule:        RuleMissingSigner,
		Severity:    SeverityCritical,
		Message:     "derived-address authority signs the transfer",
	}
}

func TestFindingIDDeterministic(t *testing.T) {
	f := sampleFinding()

	id1, err := FindingID(f)
	require.NoError(t, err)
	id2, err := FindingID(f)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64) // hex SHA-256
}

func TestFindingIDSensitiveToContent(t *testing.T) {
	base := sampleFinding()
	baseID := MustFindingID(base)

	variants := []func(*Finding){
		func(f *Finding) { f.Instruction = "deposit" },
		func(f *Finding) { f.Location = "body[1]" },
		func(f *Finding) { f.Rule = RuleMissingOwnershipLink },
		func(f *Finding) { f.Severity = SeverityHigh },
		func(f *Finding) { f.Message = "other" },
	}
	for _, mutate := range variants {
		f := base
		mutate(&f)
		assert.NotEqual(t, baseID, MustFindingID(f))
	}
}

func TestProgramHashDeterministic(t *testing.T) {
	p := &Program{
		Name: "vault",
		Contexts: []AccountContext{
			{Name: "Withdraw", Fields: []AccountField{{Name: "vault", Kind: KindPersistent, TypeName: "Vault"}}},
		},
		Handlers: []InstructionHandler{{Name: "withdraw", Context: "Withdraw"}},
	}

	h1, err := ProgramHash(p)
	require.NoError(t, err)
	h2, err := ProgramHash(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Any structural change produces a different hash.
	p.Handlers[0].Body = append(p.Handlers[0].Body, Statement{
		Kind:   StmtAssign,
		Assign: &Assignment{Target: ParsePath("vault.balance"), Value: Expr{Kind: ExprLiteral, Literal: 0}},
	})
	h3, err := ProgramHash(p)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestDomainSeparation(t *testing.T) {
	// The same payload under different domains must never collide.
	a := hashWithDomain(DomainFinding, []byte("payload"))
	b := hashWithDomain(DomainProgram, []byte("payload"))
	assert.NotEqual(t, a, b)
}
