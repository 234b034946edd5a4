package ir

import "strings"

// Program is an ordered set of instruction handlers together with the
// account contexts they reference. The Program owns all contained
// entities; handlers refer to contexts by name.
type Program struct {
	Name     string               `json:"name"`
	Contexts []AccountContext     `json:"contexts"`
	Handlers []InstructionHandler `json:"handlers"`
}

// Context returns the named account context, or nil if absent.
func (p *Program) Context(name string) *AccountContext {
	for i := range p.Contexts {
		if p.Contexts[i].Name == name {
			return &p.Contexts[i]
		}
	}
	return nil
}

// Handler returns the named instruction handler, or nil if absent.
func (p *Program) Handler(name string) *InstructionHandler {
	for i := range p.Handlers {
		if p.Handlers[i].Name == name {
			return &p.Handlers[i]
		}
	}
	return nil
}

// InstructionHandler is one instruction entry point: a parameter list,
// a reference to exactly one AccountContext, and a body of statements.
// Created once per parsed program, immutable after construction.
type InstructionHandler struct {
	Name    string      `json:"name"`
	Params  []Param     `json:"params,omitempty"`
	Context string      `json:"context"`
	Body    []Statement `json:"body"`
}

// HasParam reports whether the handler declares a parameter with the name.
func (h *InstructionHandler) HasParam(name string) bool {
	for _, p := range h.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Param is a named handler parameter with a primitive type ("u64", "i64",
// "u8", "pubkey", ...).
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AccountContext is a named ordered set of account fields. One context is
// referenced by exactly one handler; a field's identity is
// (context name, field name).
type AccountContext struct {
	Name   string         `json:"name"`
	Fields []AccountField `json:"fields"`
}

// Field returns the named field, or nil if absent.
func (c *AccountContext) Field(name string) *AccountField {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// FieldKind classifies an account field declaration.
type FieldKind string

const (
	// KindSigner is an account that must have signed the transaction.
	KindSigner FieldKind = "signer"

	// KindUnchecked is a raw account reference with no type or ownership
	// validation applied by the runtime.
	KindUnchecked FieldKind = "unchecked"

	// KindPersistent is a typed persistent account; TypeName names the
	// stored state type.
	KindPersistent FieldKind = "persistent"

	// KindProgram is an executable program account (CPI target).
	KindProgram FieldKind = "program"
)

// AccountField is one declared account in a context: a name, a kind, and
// a set of declarative constraints.
type AccountField struct {
	Name        string       `json:"name"`
	Kind        FieldKind    `json:"kind"`
	TypeName    string       `json:"type_name,omitempty"` // set when Kind == KindPersistent
	Constraints []Constraint `json:"constraints,omitempty"`
}

// Constraint returns the first constraint of the given kind, or nil.
func (f *AccountField) Constraint(kind ConstraintKind) *Constraint {
	for i := range f.Constraints {
		if f.Constraints[i].Kind == kind {
			return &f.Constraints[i]
		}
	}
	return nil
}

// Has reports whether the field carries a constraint of the given kind.
func (f *AccountField) Has(kind ConstraintKind) bool {
	return f.Constraint(kind) != nil
}

// ConstraintKind identifies a declarative field constraint variant.
type ConstraintKind string

const (
	// ConstraintMutable marks the account as writable.
	ConstraintMutable ConstraintKind = "mut"

	// ConstraintRequiresSigner requires the field to have signed even
	// when its kind is not KindSigner.
	ConstraintRequiresSigner ConstraintKind = "requires_signer"

	// ConstraintOwnershipEquality ties a stored attribute of this
	// persistent account to another context field (Target holds the
	// identity field name, Attr the stored attribute, defaulting to the
	// target name).
	ConstraintOwnershipEquality ConstraintKind = "ownership_equality"

	// ConstraintInit marks the field as a newly created account; it must
	// not also be read as pre-existing state in the same handler.
	ConstraintInit ConstraintKind = "init"

	// ConstraintDerivedSeeds declares the account address as derived
	// from the seed expressions in Seeds.
	ConstraintDerivedSeeds ConstraintKind = "derived_seeds"

	// ConstraintSpace declares allocated account space in bytes.
	ConstraintSpace ConstraintKind = "space"
)

// Constraint is one tagged constraint variant. Only the fields relevant
// to the Kind are populated.
type Constraint struct {
	Kind   ConstraintKind `json:"kind"`
	Target string         `json:"target,omitempty"` // ownership_equality: identity field name
	Seeds  []string       `json:"seeds,omitempty"`  // derived_seeds: seed expressions
	Space  int64          `json:"space,omitempty"`  // space: allocated bytes
}

// StatementKind discriminates handler body statements.
type StatementKind string

const (
	// StmtAssign writes an expression into a persistent field attribute.
	StmtAssign StatementKind = "assign"

	// StmtInvoke issues a cross-program invocation.
	StmtInvoke StatementKind = "invoke"

	// StmtGuard is an explicit check with a failure path.
	StmtGuard StatementKind = "guard"
)

// Statement is one handler body statement. Exactly one of Assign, Invoke,
// Guard is non-nil, matching Kind.
type Statement struct {
	Kind   StatementKind  `json:"kind"`
	Assign *Assignment    `json:"assign,omitempty"`
	Invoke *CPIInvocation `json:"invoke,omitempty"`
	Guard  *GuardCheck    `json:"guard,omitempty"`
}

// Assignment writes Value into Target, an attribute of a persistent
// account field.
type Assignment struct {
	Target FieldPath `json:"target"`
	Value  Expr      `json:"value"`
}

// CPIInvocation is a call into another program's instruction. Roles maps
// CPI role names ("from", "to", "authority") to bound context field
// names; the invocation never owns the fields it references.
//
// SignerSeeds is present iff the invocation is authorized by a derived
// address rather than an external signer.
type CPIInvocation struct {
	Program     string            `json:"program"`
	Instruction string            `json:"instruction"`
	Roles       map[string]string `json:"roles"`
	SignerSeeds []string          `json:"signer_seeds,omitempty"`
	Amount      *Expr             `json:"amount,omitempty"`
}

// Role returns the field bound to the named role and whether it is bound.
func (c *CPIInvocation) Role(name string) (string, bool) {
	field, ok := c.Roles[name]
	return field, ok
}

// DerivedSigner reports whether the invocation signs with a derived
// address (the program signs for itself).
func (c *CPIInvocation) DerivedSigner() bool {
	return len(c.SignerSeeds) > 0
}

// GuardKind identifies an explicit check with a failure path.
type GuardKind string

const (
	// GuardUninitialized compares a stored owner attribute against the
	// zero/empty sentinel before it may be overwritten.
	GuardUninitialized GuardKind = "uninitialized"

	// GuardStaleness compares a new value or timestamp against the
	// field's previously stored value.
	GuardStaleness GuardKind = "staleness"

	// GuardKeyEquality checks an account key against an allow-listed
	// identity.
	GuardKeyEquality GuardKind = "key_equality"

	// GuardMinAmount enforces a minimum-amount or rounding-policy bound
	// on a computed value.
	GuardMinAmount GuardKind = "min_amount"
)

// GuardCheck is an explicit runtime check whose failure aborts the
// handler. Subject names what is checked; Param optionally names the
// handler parameter compared against.
type GuardCheck struct {
	Kind    GuardKind `json:"kind"`
	Subject FieldPath `json:"subject"`
	Param   string    `json:"param,omitempty"`
}

// FieldPath addresses a context field and, optionally, an attribute
// stored inside the persistent account ("vault.authority" is
// {Field: "vault", Attr: "authority"}).
type FieldPath struct {
	Field string `json:"field"`
	Attr  string `json:"attr,omitempty"`
}

// ParsePath splits a dotted path expression into a FieldPath.
func ParsePath(s string) FieldPath {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return FieldPath{Field: s[:i], Attr: s[i+1:]}
	}
	return FieldPath{Field: s}
}

// String renders the path in dotted form.
func (p FieldPath) String() string {
	if p.Attr == "" {
		return p.Field
	}
	return p.Field + "." + p.Attr
}

// IsZero reports whether the path is empty.
func (p FieldPath) IsZero() bool { return p.Field == "" }

// ExprKind discriminates expression variants.
type ExprKind string

const (
	ExprParam   ExprKind = "param"
	ExprField   ExprKind = "field"
	ExprLiteral ExprKind = "literal"
	ExprArith   ExprKind = "arith"
)

// Expr is one expression node: a handler parameter reference, a field
// (attribute) reference, an integer literal, or a nested arithmetic
// expression. No float values exist anywhere in the model.
type Expr struct {
	Kind    ExprKind        `json:"kind"`
	Param   string          `json:"param,omitempty"`
	Field   FieldPath       `json:"field,omitempty"`
	Literal int64           `json:"literal,omitempty"`
	Arith   *ArithmeticExpr `json:"arith,omitempty"`
}

// ArithOp is an arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "add"
	OpSub ArithOp = "sub"
	OpMul ArithOp = "mul"
	OpDiv ArithOp = "div"
)

// ArithmeticExpr applies an operator to operand expressions. Guarded
// means the operation is built from a checked/saturating primitive whose
// failure case is propagated rather than discarded; raw operators have
// Guarded false.
type ArithmeticExpr struct {
	Op       ArithOp `json:"op"`
	Operands []Expr  `json:"operands"`
	Guarded  bool    `json:"guarded,omitempty"`
}

// Walk visits e and every nested expression in depth-first order.
// The visit function returning false prunes descent into that subtree.
func (e *Expr) Walk(visit func(*Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	if e.Kind == ExprArith && e.Arith != nil {
		for i := range e.Arith.Operands {
			e.Arith.Operands[i].Walk(visit)
		}
	}
}

// References reports whether the expression tree reads the given path.
// An attribute-less path matches any attribute of the same field.
func (e *Expr) References(p FieldPath) bool {
	found := false
	e.Walk(func(n *Expr) bool {
		if n.Kind == ExprField {
			if n.Field == p || (p.Attr == "" && n.Field.Field == p.Field) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// ReferencesParam reports whether the expression tree reads the named
// handler parameter.
func (e *Expr) ReferencesParam(name string) bool {
	found := false
	e.Walk(func(n *Expr) bool {
		if n.Kind == ExprParam && n.Param == name {
			found = true
			return false
		}
		return true
	})
	return found
}
