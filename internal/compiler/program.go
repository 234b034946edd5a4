package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// CompilePrograms extracts every program declared under the top-level
// "program" struct of a CUE value, in iteration order.
func CompilePrograms(v cue.Value) ([]*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	programsVal := v.LookupPath(cue.ParsePath("program"))
	if !programsVal.Exists() {
		return nil, &CompileError{
			Field:   "program",
			Message: "no program declarations found",
			Pos:     v.Pos(),
		}
	}

	iter, err := programsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var programs []*ir.Program
	for iter.Next() {
		p, err := CompileProgram(iter.Value())
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// CompileProgram parses a CUE value into a structural model. The value
// should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: vault: { ... }`)
//	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program.vault")))
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Program{}

	// Program name comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	p.Contexts, err = parseContexts(v)
	if err != nil {
		return nil, err
	}

	p.Handlers, err = parseHandlers(v)
	if err != nil {
		return nil, err
	}
	if len(p.Handlers) == 0 {
		return nil, &CompileError{
			Field:   "instruction",
			Message: "at least one instruction is required",
			Pos:     v.Pos(),
		}
	}

	return p, nil
}

// parseContexts extracts account contexts from the "context" struct.
func parseContexts(v cue.Value) ([]ir.AccountContext, error) {
	var contexts []ir.AccountContext

	ctxVal := v.LookupPath(cue.ParsePath("context"))
	if !ctxVal.Exists() {
		return contexts, nil
	}

	iter, err := ctxVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		ctx := ir.AccountContext{Name: strings.Trim(iter.Label(), `"`)}

		accountsVal := iter.Value().LookupPath(cue.ParsePath("account"))
		if accountsVal.Exists() {
			fieldIter, err := accountsVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for fieldIter.Next() {
				field, err := parseField(fieldIter.Label(), fieldIter.Value())
				if err != nil {
					return nil, err
				}
				ctx.Fields = append(ctx.Fields, field)
			}
		}

		contexts = append(contexts, ctx)
	}
	return contexts, nil
}

// parseField parses one account declaration.
func parseField(name string, v cue.Value) (ir.AccountField, error) {
	field := ir.AccountField{Name: strings.Trim(name, `"`)}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return field, &CompileError{
			Field:   "account." + field.Name,
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return field, formatCUEError(err)
	}
	switch ir.FieldKind(kind) {
	case ir.KindSigner, ir.KindUnchecked, ir.KindPersistent, ir.KindProgram:
		field.Kind = ir.FieldKind(kind)
	default:
		return field, &CompileError{
			Field:   "account." + field.Name,
			Message: "invalid kind " + kind + `, must be "signer", "unchecked", "persistent", or "program"`,
			Pos:     kindVal.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		if field.TypeName, err = typeVal.String(); err != nil {
			return field, formatCUEError(err)
		}
	}
	if field.Kind == ir.KindPersistent && field.TypeName == "" {
		return field, &CompileError{
			Field:   "account." + field.Name,
			Message: "persistent accounts require a type",
			Pos:     v.Pos(),
		}
	}

	constraintsVal := v.LookupPath(cue.ParsePath("constraints"))
	if constraintsVal.Exists() {
		field.Constraints, err = parseConstraints(field.Name, constraintsVal)
		if err != nil {
			return field, err
		}
	}

	return field, nil
}

// parseConstraints parses the heterogeneous constraint list: bare
// strings for flag constraints ("mut", "init", "signer"), single-key
// structs for parameterized ones ({has_one: "authority"},
// {seeds: [...]}, {space: 49}).
func parseConstraints(fieldName string, v cue.Value) ([]ir.Constraint, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var constraints []ir.Constraint
	for iter.Next() {
		elem := iter.Value()

		if s, err := elem.String(); err == nil {
			c, cerr := flagConstraint(fieldName, s, elem)
			if cerr != nil {
				return nil, cerr
			}
			constraints = append(constraints, c)
			continue
		}

		c, cerr := keyedConstraint(fieldName, elem)
		if cerr != nil {
			return nil, cerr
		}
		constraints = append(constraints, c)
	}
	return constraints, nil
}

func flagConstraint(fieldName, s string, v cue.Value) (ir.Constraint, error) {
	switch s {
	case "mut":
		return ir.Constraint{Kind: ir.ConstraintMutable}, nil
	case "init":
		return ir.Constraint{Kind: ir.ConstraintInit}, nil
	case "signer":
		return ir.Constraint{Kind: ir.ConstraintRequiresSigner}, nil
	default:
		return ir.Constraint{}, &CompileError{
			Field:   "account." + fieldName + ".constraints",
			Message: "unknown constraint " + s,
			Pos:     v.Pos(),
		}
	}
}

func keyedConstraint(fieldName string, v cue.Value) (ir.Constraint, error) {
	if hasOne := v.LookupPath(cue.ParsePath("has_one")); hasOne.Exists() {
		target, err := hasOne.String()
		if err != nil {
			return ir.Constraint{}, formatCUEError(err)
		}
		return ir.Constraint{Kind: ir.ConstraintOwnershipEquality, Target: target}, nil
	}

	if seedsVal := v.LookupPath(cue.ParsePath("seeds")); seedsVal.Exists() {
		seeds, err := stringList(seedsVal)
		if err != nil {
			return ir.Constraint{}, err
		}
		return ir.Constraint{Kind: ir.ConstraintDerivedSeeds, Seeds: seeds}, nil
	}

	if spaceVal := v.LookupPath(cue.ParsePath("space")); spaceVal.Exists() {
		space, err := spaceVal.Int64()
		if err != nil {
			return ir.Constraint{}, formatCUEError(err)
		}
		return ir.Constraint{Kind: ir.ConstraintSpace, Space: space}, nil
	}

	return ir.Constraint{}, &CompileError{
		Field:   "account." + fieldName + ".constraints",
		Message: `constraint must be "mut", "init", "signer", {has_one: ...}, {seeds: [...]}, or {space: ...}`,
		Pos:     v.Pos(),
	}
}

// parseHandlers extracts instruction handlers from the "instruction"
// struct.
func parseHandlers(v cue.Value) ([]ir.InstructionHandler, error) {
	var handlers []ir.InstructionHandler

	instVal := v.LookupPath(cue.ParsePath("instruction"))
	if !instVal.Exists() {
		return handlers, nil
	}

	iter, err := instVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		h, err := parseHandler(strings.Trim(iter.Label(), `"`), iter.Value())
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func parseHandler(name string, v cue.Value) (ir.InstructionHandler, error) {
	h := ir.InstructionHandler{Name: name}

	ctxVal := v.LookupPath(cue.ParsePath("context"))
	if !ctxVal.Exists() {
		return h, &CompileError{
			Field:   "instruction." + name,
			Message: "context is required",
			Pos:     v.Pos(),
		}
	}
	ctx, err := ctxVal.String()
	if err != nil {
		return h, formatCUEError(err)
	}
	h.Context = ctx

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		paramIter, err := paramsVal.List()
		if err != nil {
			return h, formatCUEError(err)
		}
		for paramIter.Next() {
			p, err := parseParam(name, paramIter.Value())
			if err != nil {
				return h, err
			}
			h.Params = append(h.Params, p)
		}
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if bodyVal.Exists() {
		stmtIter, err := bodyVal.List()
		if err != nil {
			return h, formatCUEError(err)
		}
		for stmtIter.Next() {
			stmt, err := parseStatement(name, stmtIter.Value())
			if err != nil {
				return h, err
			}
			h.Body = append(h.Body, stmt)
		}
	}

	return h, nil
}

func parseParam(handler string, v cue.Value) (ir.Param, error) {
	var p ir.Param
	nameVal := v.LookupPath(cue.ParsePath("name"))
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !nameVal.Exists() || !typeVal.Exists() {
		return p, &CompileError{
			Field:   "instruction." + handler + ".params",
			Message: "params require name and type",
			Pos:     v.Pos(),
		}
	}
	var err error
	if p.Name, err = nameVal.String(); err != nil {
		return p, formatCUEError(err)
	}
	if p.Type, err = typeVal.String(); err != nil {
		return p, formatCUEError(err)
	}
	return p, nil
}

func parseStatement(handler string, v cue.Value) (ir.Statement, error) {
	if assignVal := v.LookupPath(cue.ParsePath("assign")); assignVal.Exists() {
		assign, err := parseAssign(handler, assignVal)
		if err != nil {
			return ir.Statement{}, err
		}
		return ir.Statement{Kind: ir.StmtAssign, Assign: assign}, nil
	}

	if invokeVal := v.LookupPath(cue.ParsePath("invoke")); invokeVal.Exists() {
		invoke, err := parseInvoke(handler, invokeVal)
		if err != nil {
			return ir.Statement{}, err
		}
		return ir.Statement{Kind: ir.StmtInvoke, Invoke: invoke}, nil
	}

	if guardVal := v.LookupPath(cue.ParsePath("guard")); guardVal.Exists() {
		guard, err := parseGuard(handler, guardVal)
		if err != nil {
			return ir.Statement{}, err
		}
		return ir.Statement{Kind: ir.StmtGuard, Guard: guard}, nil
	}

	return ir.Statement{}, &CompileError{
		Field:   "instruction." + handler + ".body",
		Message: "statement must be one of assign, invoke, guard",
		Pos:     v.Pos(),
	}
}

func parseAssign(handler string, v cue.Value) (*ir.Assignment, error) {
	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return nil, &CompileError{
			Field:   "instruction." + handler + ".assign",
			Message: "target is required",
			Pos:     v.Pos(),
		}
	}
	target, err := targetVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if !valueVal.Exists() {
		return nil, &CompileError{
			Field:   "instruction." + handler + ".assign",
			Message: "value is required",
			Pos:     v.Pos(),
		}
	}
	value, err := parseExpr(handler, valueVal)
	if err != nil {
		return nil, err
	}

	return &ir.Assignment{Target: ir.ParsePath(target), Value: value}, nil
}

func parseInvoke(handler string, v cue.Value) (*ir.CPIInvocation, error) {
	cpi := &ir.CPIInvocation{Roles: make(map[string]string)}

	var err error
	progVal := v.LookupPath(cue.ParsePath("program"))
	instVal := v.LookupPath(cue.ParsePath("instruction"))
	if !progVal.Exists() || !instVal.Exists() {
		return nil, &CompileError{
			Field:   "instruction." + handler + ".invoke",
			Message: "invoke requires program and instruction",
			Pos:     v.Pos(),
		}
	}
	if cpi.Program, err = progVal.String(); err != nil {
		return nil, formatCUEError(err)
	}
	if cpi.Instruction, err = instVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	rolesVal := v.LookupPath(cue.ParsePath("roles"))
	if rolesVal.Exists() {
		roleIter, err := rolesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for roleIter.Next() {
			field, err := roleIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			cpi.Roles[strings.Trim(roleIter.Label(), `"`)] = field
		}
	}

	seedsVal := v.LookupPath(cue.ParsePath("signer_seeds"))
	if seedsVal.Exists() {
		if cpi.SignerSeeds, err = stringList(seedsVal); err != nil {
			return nil, err
		}
	}

	amountVal := v.LookupPath(cue.ParsePath("amount"))
	if amountVal.Exists() {
		amount, err := parseExpr(handler, amountVal)
		if err != nil {
			return nil, err
		}
		cpi.Amount = &amount
	}

	return cpi, nil
}

func parseGuard(handler string, v cue.Value) (*ir.GuardCheck, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   "instruction." + handler + ".guard",
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	guard := &ir.GuardCheck{}
	switch ir.GuardKind(kind) {
	case ir.GuardUninitialized, ir.GuardStaleness, ir.GuardKeyEquality, ir.GuardMinAmount:
		guard.Kind = ir.GuardKind(kind)
	default:
		return nil, &CompileError{
			Field:   "instruction." + handler + ".guard",
			Message: "invalid guard kind " + kind,
			Pos:     kindVal.Pos(),
		}
	}

	if subjectVal := v.LookupPath(cue.ParsePath("subject")); subjectVal.Exists() {
		subject, err := subjectVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		guard.Subject = ir.ParsePath(subject)
	}

	if paramVal := v.LookupPath(cue.ParsePath("param")); paramVal.Exists() {
		if guard.Param, err = paramVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return guard, nil
}

// arithOps maps expression struct keys to operators.
var arithOps = map[string]ir.ArithOp{
	"add": ir.OpAdd,
	"sub": ir.OpSub,
	"mul": ir.OpMul,
	"div": ir.OpDiv,
}

// parseExpr parses one expression node: {param: ...}, {field: ...},
// {lit: ...}, or an arithmetic struct {add|sub|mul|div: [...],
// guarded: bool}.
func parseExpr(handler string, v cue.Value) (ir.Expr, error) {
	if paramVal := v.LookupPath(cue.ParsePath("param")); paramVal.Exists() {
		name, err := paramVal.String()
		if err != nil {
			return ir.Expr{}, formatCUEError(err)
		}
		return ir.Expr{Kind: ir.ExprParam, Param: name}, nil
	}

	if fieldVal := v.LookupPath(cue.ParsePath("field")); fieldVal.Exists() {
		path, err := fieldVal.String()
		if err != nil {
			return ir.Expr{}, formatCUEError(err)
		}
		return ir.Expr{Kind: ir.ExprField, Field: ir.ParsePath(path)}, nil
	}

	if litVal := v.LookupPath(cue.ParsePath("lit")); litVal.Exists() {
		lit, err := litVal.Int64()
		if err != nil {
			return ir.Expr{}, formatCUEError(err)
		}
		return ir.Expr{Kind: ir.ExprLiteral, Literal: lit}, nil
	}

	for key, op := range arithOps {
		opVal := v.LookupPath(cue.ParsePath(key))
		if !opVal.Exists() {
			continue
		}
		arith := &ir.ArithmeticExpr{Op: op}

		operandIter, err := opVal.List()
		if err != nil {
			return ir.Expr{}, formatCUEError(err)
		}
		for operandIter.Next() {
			operand, err := parseExpr(handler, operandIter.Value())
			if err != nil {
				return ir.Expr{}, err
			}
			arith.Operands = append(arith.Operands, operand)
		}

		if guardedVal := v.LookupPath(cue.ParsePath("guarded")); guardedVal.Exists() {
			if arith.Guarded, err = guardedVal.Bool(); err != nil {
				return ir.Expr{}, formatCUEError(err)
			}
		}
		return ir.Expr{Kind: ir.ExprArith, Arith: arith}, nil
	}

	return ir.Expr{}, &CompileError{
		Field:   "instruction." + handler,
		Message: "expression must be one of param, field, lit, add, sub, mul, div",
		Pos:     v.Pos(),
	}
}

// stringList extracts a CUE list of strings.
func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
