package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateCleanPrograms(t *testing.T) {
	assert.Empty(t, Validate(testutil.VulnerableVault()))
	assert.Empty(t, Validate(testutil.SafeVault()))
}

func TestValidateNoHandlers(t *testing.T) {
	p := &ir.Program{Name: "empty"}
	errs := Validate(p)
	assert.Contains(t, codes(errs), ErrProgramNoHandlers)
}

func TestValidateDuplicateNames(t *testing.T) {
	p := &ir.Program{
		Name: "dup",
		Contexts: []ir.AccountContext{
			{Name: "C", Fields: []ir.AccountField{
				{Name: "payer", Kind: ir.KindSigner},
				{Name: "payer", Kind: ir.KindUnchecked},
			}},
			{Name: "C"},
		},
		Handlers: []ir.InstructionHandler{
			{Name: "run", Context: "C"},
			{Name: "run", Context: "C"},
		},
	}

	got := codes(Validate(p))
	assert.Contains(t, got, ErrDuplicateContext)
	assert.Contains(t, got, ErrDuplicateField)
	assert.Contains(t, got, ErrDuplicateHandler)
}

func TestValidateUnknownContext(t *testing.T) {
	p := testutil.NewProgram("p").
		Context("C", testutil.Signer("payer")).
		Handler("run", "Nope", nil).
		Build()

	errs := Validate(p)
	require.NotEmpty(t, errs)
	assert.Contains(t, codes(errs), ErrUnknownContext)
	assert.Contains(t, codes(errs), ErrContextUnused)
}

func TestValidateContextReuse(t *testing.T) {
	p := testutil.NewProgram("p").
		Context("Shared", testutil.Signer("payer")).
		Handler("first", "Shared", nil).
		Handler("second", "Shared", nil).
		Build()

	errs := Validate(p)
	// One error per reusing handler.
	var reuse int
	for _, e := range errs {
		if e.Code == ErrContextReuse {
			reuse++
		}
	}
	assert.Equal(t, 2, reuse)
}

func TestValidateUnknownFieldRefs(t *testing.T) {
	amount := testutil.ParamRef("amount")
	p := testutil.NewProgram("p").
		Context("C",
			testutil.Persistent("vault", "Vault", testutil.Mut()),
			testutil.Signer("payer"),
		).
		Handler("run", "C", []ir.Param{{Name: "amount", Type: "u64"}},
			testutil.Assign("ghost.balance", testutil.ParamRef("amount")),
			testutil.Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "phantom"},
				[]string{`"vault"`, "spirit.authority"},
				&amount),
			testutil.Guard(ir.GuardMinAmount, "wraith", "amount"),
		).
		Build()

	errs := Validate(p)
	var unknown []string
	for _, e := range errs {
		if e.Code == ErrUnknownField {
			unknown = append(unknown, e.Field)
		}
	}
	// Assign target, invoke role, signer seed, guard subject.
	assert.Len(t, unknown, 4)
}

func TestValidateUnknownParam(t *testing.T) {
	p := testutil.NewProgram("p").
		Context("C", testutil.Persistent("vault", "Vault", testutil.Mut())).
		Handler("run", "C", nil,
			testutil.Assign("vault.balance", testutil.ParamRef("amount")),
			testutil.Guard(ir.GuardMinAmount, "vault", "floor"),
		).
		Build()

	errs := Validate(p)
	var unknown int
	for _, e := range errs {
		if e.Code == ErrUnknownParam {
			unknown++
		}
	}
	assert.Equal(t, 2, unknown)
}

func TestValidateInitReadConflict(t *testing.T) {
	p := testutil.NewProgram("p").
		Context("Init",
			testutil.Persistent("vault", "Vault", testutil.Init(), testutil.Mut()),
			testutil.Signer("payer"),
		).
		Handler("initialize", "Init", nil,
			testutil.Assign("vault.balance", testutil.Arith(ir.OpAdd,
				testutil.FieldRef("vault.balance"), testutil.Lit(1))),
		).
		Build()

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInitReadConflict, errs[0].Code)
	assert.Equal(t, "instruction.initialize.vault", errs[0].Field)
}

func TestValidateInitWriteAllowed(t *testing.T) {
	// Writing to a freshly created account is the whole point of init.
	p := testutil.NewProgram("p").
		Context("Init",
			testutil.Persistent("vault", "Vault", testutil.Init(), testutil.Mut()),
			testutil.Signer("payer"),
		).
		Handler("initialize", "Init", nil,
			testutil.Assign("vault.authority", testutil.FieldRef("payer")),
			testutil.Assign("vault.balance", testutil.Lit(0)),
		).
		Build()

	assert.Empty(t, Validate(p))
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "instruction.run", Message: "boom", Code: ErrUnknownField}
	assert.Equal(t, "[E213] instruction.run: boom", err.Error())
}
