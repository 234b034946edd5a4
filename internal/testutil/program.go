// Package testutil provides shared fixture builders for tests.
//
// The builders assemble structural models directly, without going
// through the CUE front-end, so rule and engine tests stay independent
// of fixture file parsing.
package testutil

import "github.com/grkhmz23/solaudit-agent/internal/ir"

// ProgramBuilder assembles an ir.Program incrementally.
type ProgramBuilder struct {
	p ir.Program
}

// NewProgram creates a builder for a named program.
func NewProgram(name string) *ProgramBuilder {
	return &ProgramBuilder{p: ir.Program{Name: name}}
}

// Context adds an account context with the given fields.
func (b *ProgramBuilder) Context(name string, fields ...ir.AccountField) *ProgramBuilder {
	b.p.Contexts = append(b.p.Contexts, ir.AccountContext{Name: name, Fields: fields})
	return b
}

// Handler adds an instruction handler bound to a context.
func (b *ProgramBuilder) Handler(name, context string, params []ir.Param, body ...ir.Statement) *ProgramBuilder {
	b.p.Handlers = append(b.p.Handlers, ir.InstructionHandler{
		Name:    name,
		Context: context,
		Params:  params,
		Body:    body,
	})
	return b
}

// Build returns the assembled program.
func (b *ProgramBuilder) Build() *ir.Program {
	return &b.p
}

// Field constructors.

// Signer declares a signer account field.
func Signer(name string, constraints ...ir.Constraint) ir.AccountField {
	return ir.AccountField{Name: name, Kind: ir.KindSigner, Constraints: constraints}
}

// Unchecked declares an unchecked reference field.
func Unchecked(name string, constraints ...ir.Constraint) ir.AccountField {
	return ir.AccountField{Name: name, Kind: ir.KindUnchecked, Constraints: constraints}
}

// Persistent declares a persistent account field with a state type.
func Persistent(name, typeName string, constraints ...ir.Constraint) ir.AccountField {
	return ir.AccountField{Name: name, Kind: ir.KindPersistent, TypeName: typeName, Constraints: constraints}
}

// ProgramRef declares a program reference field.
func ProgramRef(name string) ir.AccountField {
	return ir.AccountField{Name: name, Kind: ir.KindProgram}
}

// Constraint constructors.

func Mut() ir.Constraint            { return ir.Constraint{Kind: ir.ConstraintMutable} }
func Init() ir.Constraint           { return ir.Constraint{Kind: ir.ConstraintInit} }
func RequiresSigner() ir.Constraint { return ir.Constraint{Kind: ir.ConstraintRequiresSigner} }

// HasOne declares an ownership-equality constraint on a target field.
func HasOne(target string) ir.Constraint {
	return ir.Constraint{Kind: ir.ConstraintOwnershipEquality, Target: target}
}

// Seeds declares a derived-address constraint. Literal seeds are quoted
// strings; the rest are field paths.
func Seeds(seeds ...string) ir.Constraint {
	return ir.Constraint{Kind: ir.ConstraintDerivedSeeds, Seeds: seeds}
}

func Space(n int64) ir.Constraint {
	return ir.Constraint{Kind: ir.ConstraintSpace, Space: n}
}

// Expression constructors.

// ParamRef references an instruction parameter.
func ParamRef(name string) ir.Expr {
	return ir.Expr{Kind: ir.ExprParam, Param: name}
}

// FieldRef references a field or stored attribute, e.g. "vault.balance".
func FieldRef(path string) ir.Expr {
	return ir.Expr{Kind: ir.ExprField, Field: ir.ParsePath(path)}
}

// Lit is an integer literal.
func Lit(n int64) ir.Expr {
	return ir.Expr{Kind: ir.ExprLiteral, Literal: n}
}

// Arith builds an unguarded arithmetic node.
func Arith(op ir.ArithOp, operands ...ir.Expr) ir.Expr {
	return ir.Expr{Kind: ir.ExprArith, Arith: &ir.ArithmeticExpr{Op: op, Operands: operands}}
}

// Checked builds a guarded arithmetic node (checked or saturating
// primitive with the failure case propagated).
func Checked(op ir.ArithOp, operands ...ir.Expr) ir.Expr {
	return ir.Expr{Kind: ir.ExprArith, Arith: &ir.ArithmeticExpr{Op: op, Operands: operands, Guarded: true}}
}

// Statement constructors.

// Assign writes an expression into a stored attribute.
func Assign(target string, value ir.Expr) ir.Statement {
	return ir.Statement{
		Kind:   ir.StmtAssign,
		Assign: &ir.Assignment{Target: ir.ParsePath(target), Value: value},
	}
}

// Invoke builds a cross-program invocation statement.
func Invoke(program, instruction string, roles map[string]string, seeds []string, amount *ir.Expr) ir.Statement {
	return ir.Statement{
		Kind: ir.StmtInvoke,
		Invoke: &ir.CPIInvocation{
			Program:     program,
			Instruction: instruction,
			Roles:       roles,
			SignerSeeds: seeds,
			Amount:      amount,
		},
	}
}

// Guard builds an explicit runtime check statement.
func Guard(kind ir.GuardKind, subject, param string) ir.Statement {
	return ir.Statement{
		Kind:  ir.StmtGuard,
		Guard: &ir.GuardCheck{Kind: kind, Subject: ir.ParsePath(subject), Param: param},
	}
}

// VulnerableVault returns the canonical vulnerable vault fixture.
//
// Expected findings, in report order:
//
//	critical R5 reinit_vault vault.authority  (custody overwrite with no init or sentinel)
//	critical R1 withdraw     body[0]          (unchecked authority on derived-signer transfer)
//	high     R2 reinit_vault vault            (no ownership link on custody write)
//	high     R4 update_price feed.price       (bare param overwrite, publisher never allow-listed)
//	high     R2 withdraw     vault            (no ownership link on derived-signer CPI)
//
// initialize and deposit produce nothing.
func VulnerableVault() *ir.Program {
	amount := ParamRef("amount")
	return NewProgram("vault").
		Context("Initialize",
			Persistent("vault", "Vault", Init(), Mut(), Space(82)),
			Signer("payer", Mut()),
			ProgramRef("system_program"),
		).
		Context("Deposit",
			Persistent("vault", "Vault", Mut()),
			Signer("user", Mut()),
		).
		Context("Withdraw",
			Persistent("vault", "Vault", Mut(), Seeds(`"vault"`, "authority")),
			Unchecked("authority"),
			Unchecked("recipient", Mut()),
			ProgramRef("token_program"),
		).
		Context("UpdatePrice",
			Persistent("feed", "PriceFeed", Mut()),
			Unchecked("publisher"),
		).
		Context("Reinit",
			Persistent("vault", "Vault", Mut()),
			Unchecked("authority"),
		).
		Handler("initialize", "Initialize", nil,
			Assign("vault.authority", FieldRef("payer")),
			Assign("vault.balance", Lit(0)),
		).
		Handler("deposit", "Deposit", []ir.Param{{Name: "amount", Type: "u64"}},
			Assign("vault.balance", Checked(ir.OpAdd, FieldRef("vault.balance"), ParamRef("amount"))),
		).
		Handler("withdraw", "Withdraw", []ir.Param{{Name: "amount", Type: "u64"}},
			Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "vault"},
				[]string{`"vault"`, "vault.authority"},
				&amount,
			),
		).
		Handler("update_price", "UpdatePrice", []ir.Param{{Name: "price", Type: "u64"}},
			Assign("feed.price", ParamRef("price")),
		).
		Handler("reinit_vault", "Reinit", nil,
			Assign("vault.authority", FieldRef("authority")),
			Assign("vault.balance", Lit(0)),
		).
		Build()
}

// SafeVault returns the hardened counterpart of VulnerableVault. Every
// custody write is init-constrained or sentinel-guarded, the authority
// is a verified signer tied by ownership equality, and oracle updates
// are allow-listed and staleness-checked. Produces zero findings.
func SafeVault() *ir.Program {
	amount := ParamRef("amount")
	return NewProgram("safe_vault").
		Context("Initialize",
			Persistent("vault", "Vault", Init(), Mut(), Space(82)),
			Signer("payer", Mut()),
			ProgramRef("system_program"),
		).
		Context("Withdraw",
			Persistent("vault", "Vault", Mut(), HasOne("authority"), Seeds(`"vault"`, "authority")),
			Signer("authority"),
			Unchecked("recipient", Mut()),
			ProgramRef("token_program"),
		).
		Context("UpdatePrice",
			Persistent("feed", "PriceFeed", Mut()),
			Unchecked("publisher"),
		).
		Handler("initialize", "Initialize", nil,
			Assign("vault.authority", FieldRef("payer")),
			Assign("vault.balance", Lit(0)),
		).
		Handler("withdraw", "Withdraw", []ir.Param{{Name: "amount", Type: "u64"}},
			Invoke("token", "transfer",
				map[string]string{"from": "vault", "to": "recipient", "authority": "vault"},
				[]string{`"vault"`, "vault.authority"},
				&amount,
			),
		).
		Handler("update_price", "UpdatePrice", []ir.Param{{Name: "price", Type: "u64"}},
			Guard(ir.GuardKeyEquality, "publisher", ""),
			Guard(ir.GuardStaleness, "feed", "price"),
			Assign("feed.price", ParamRef("price")),
		).
		Build()
}
