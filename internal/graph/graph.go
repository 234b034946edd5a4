package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// OpKind discriminates privileged-operation nodes.
type OpKind string

const (
	// OpAssign is an assignment into a persistent field attribute.
	OpAssign OpKind = "assign"
	// OpCPI is a cross-program invocation.
	OpCPI OpKind = "cpi"
)

// Op is one privileged-operation node. Index is the statement position
// in the handler body and doubles as the operation's location.
type Op struct {
	Kind   OpKind
	Index  int
	Assign *ir.Assignment
	Invoke *ir.CPIInvocation

	// Reads and Writes are the edges into field nodes, as attribute
	// paths in first-occurrence order.
	Reads  []ir.FieldPath
	Writes []ir.FieldPath
}

// Location renders the operation's position within the handler body.
func (o *Op) Location() string {
	return fmt.Sprintf("body[%d]", o.Index)
}

// Guard is an explicit check statement attached to the graph so rules
// can verify failure paths without re-walking the body.
type Guard struct {
	Index int
	Check *ir.GuardCheck
}

// FieldNode is one account-field node with its incident operation edges.
type FieldNode struct {
	Field  *ir.AccountField
	Reads  []*Op
	Writes []*Op
}

// ConstraintGraph is the per-instruction bipartite model consumed by the
// rule sets. It holds read references into the Program and is immutable
// after Build returns.
type ConstraintGraph struct {
	Instruction string
	Handler     *ir.InstructionHandler
	Context     *ir.AccountContext

	FieldOrder []string
	Fields     map[string]*FieldNode
	Ops        []*Op
	Guards     []Guard
}

// Field returns the named field node, or nil.
func (g *ConstraintGraph) Field(name string) *FieldNode {
	return g.Fields[name]
}

// CPIs returns the cross-program invocation nodes in body order.
func (g *ConstraintGraph) CPIs() []*Op {
	var ops []*Op
	for _, op := range g.Ops {
		if op.Kind == OpCPI {
			ops = append(ops, op)
		}
	}
	return ops
}

// Assignments returns the persistent-assignment nodes in body order.
func (g *ConstraintGraph) Assignments() []*Op {
	var ops []*Op
	for _, op := range g.Ops {
		if op.Kind == OpAssign {
			ops = append(ops, op)
		}
	}
	return ops
}

// HasGuard reports whether the handler contains a guard of the given
// kind whose subject is the named field. An empty field name matches any
// subject.
func (g *ConstraintGraph) HasGuard(kind ir.GuardKind, field string) bool {
	for _, gd := range g.Guards {
		if gd.Check.Kind != kind {
			continue
		}
		if field == "" || gd.Check.Subject.Field == field {
			return true
		}
	}
	return false
}

// SeedRefs parses seed expressions into field paths, skipping quoted
// string literals. "vault.authority" yields {vault authority};
// `"vault"` is a literal and yields nothing.
func SeedRefs(seeds []string) []ir.FieldPath {
	var refs []ir.FieldPath
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" || strings.HasPrefix(seed, `"`) {
			continue
		}
		refs = append(refs, ir.ParsePath(seed))
	}
	return refs
}

// Build constructs one constraint graph per instruction handler.
//
// Construction never fails as a whole: malformed instructions are
// reported as defects and omitted from the result while the remaining
// instructions are built normally. Graphs are keyed by instruction name;
// iterate Program.Handlers for declaration order.
func Build(p *ir.Program) (map[string]*ConstraintGraph, []*MalformedProgramError) {
	var defects []*MalformedProgramError

	// Context usage counts for the 1:1 context/handler invariant.
	usage := make(map[string]int, len(p.Contexts))
	for i := range p.Handlers {
		usage[p.Handlers[i].Context]++
	}
	for i := range p.Contexts {
		if usage[p.Contexts[i].Name] == 0 {
			defects = append(defects, &MalformedProgramError{
				Code:    DefectContextUnused,
				Subject: p.Contexts[i].Name,
				Message: "account context is referenced by no handler",
			})
		}
	}

	graphs := make(map[string]*ConstraintGraph, len(p.Handlers))
	for i := range p.Handlers {
		h := &p.Handlers[i]
		if usage[h.Context] > 1 {
			defects = append(defects, &MalformedProgramError{
				Code:        DefectContextReuse,
				Instruction: h.Name,
				Subject:     h.Context,
				Message:     fmt.Sprintf("account context referenced by %d handlers, want exactly one", usage[h.Context]),
			})
			continue
		}

		g, err := BuildInstruction(p, h)
		if err != nil {
			defects = append(defects, err)
			continue
		}
		graphs[h.Name] = g
	}

	return graphs, defects
}

// BuildInstruction constructs the constraint graph for a single handler.
func BuildInstruction(p *ir.Program, h *ir.InstructionHandler) (*ConstraintGraph, *MalformedProgramError) {
	ctx := p.Context(h.Context)
	if ctx == nil {
		return nil, &MalformedProgramError{
			Code:        DefectUnknownContext,
			Instruction: h.Name,
			Subject:     h.Context,
			Message:     "handler references an undeclared account context",
		}
	}

	g := &ConstraintGraph{
		Instruction: h.Name,
		Handler:     h,
		Context:     ctx,
		Fields:      make(map[string]*FieldNode, len(ctx.Fields)),
	}
	for i := range ctx.Fields {
		f := &ctx.Fields[i]
		g.FieldOrder = append(g.FieldOrder, f.Name)
		g.Fields[f.Name] = &FieldNode{Field: f}
	}

	b := &builder{g: g}
	for idx := range h.Body {
		stmt := &h.Body[idx]
		switch stmt.Kind {
		case ir.StmtAssign:
			if stmt.Assign == nil {
				continue
			}
			if err := b.addAssign(idx, stmt.Assign); err != nil {
				return nil, err
			}
		case ir.StmtInvoke:
			if stmt.Invoke == nil {
				continue
			}
			if err := b.addInvoke(idx, stmt.Invoke); err != nil {
				return nil, err
			}
		case ir.StmtGuard:
			if stmt.Guard == nil {
				continue
			}
			if err := b.addGuard(idx, stmt.Guard); err != nil {
				return nil, err
			}
		}
	}

	if err := b.checkInitReadConflict(); err != nil {
		return nil, err
	}
	return g, nil
}

// builder accumulates edges while walking one handler body.
type builder struct {
	g *ConstraintGraph
}

func (b *builder) dangling(path string) *MalformedProgramError {
	return &MalformedProgramError{
		Code:        DefectDanglingFieldRef,
		Instruction: b.g.Instruction,
		Subject:     path,
		Message:     "handler references a field absent from its account context",
	}
}

func (b *builder) addAssign(idx int, a *ir.Assignment) *MalformedProgramError {
	op := &Op{Kind: OpAssign, Index: idx, Assign: a}

	if b.g.Field(a.Target.Field) == nil {
		return b.dangling(a.Target.String())
	}
	b.write(op, a.Target)

	if err := b.readExpr(op, &a.Value); err != nil {
		return err
	}

	b.g.Ops = append(b.g.Ops, op)
	return nil
}

func (b *builder) addInvoke(idx int, cpi *ir.CPIInvocation) *MalformedProgramError {
	op := &Op{Kind: OpCPI, Index: idx, Invoke: cpi}

	// Role iteration is sorted for deterministic edge order.
	roles := make([]string, 0, len(cpi.Roles))
	for role := range cpi.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		field := cpi.Roles[role]
		if b.g.Field(field) == nil {
			return b.dangling(field)
		}
		// Source and destination accounts are mutated by a transfer;
		// every other role is only consulted.
		switch role {
		case "from", "to":
			b.write(op, ir.FieldPath{Field: field})
		default:
			b.read(op, ir.FieldPath{Field: field})
		}
	}

	for _, ref := range SeedRefs(cpi.SignerSeeds) {
		if b.g.Field(ref.Field) == nil {
			return b.dangling(ref.String())
		}
		b.read(op, ref)
	}

	if cpi.Amount != nil {
		if err := b.readExpr(op, cpi.Amount); err != nil {
			return err
		}
	}

	b.g.Ops = append(b.g.Ops, op)
	return nil
}

func (b *builder) addGuard(idx int, gc *ir.GuardCheck) *MalformedProgramError {
	if !gc.Subject.IsZero() && b.g.Field(gc.Subject.Field) == nil {
		return b.dangling(gc.Subject.String())
	}
	b.g.Guards = append(b.g.Guards, Guard{Index: idx, Check: gc})
	return nil
}

func (b *builder) readExpr(op *Op, e *ir.Expr) *MalformedProgramError {
	var dangling *MalformedProgramError
	e.Walk(func(n *ir.Expr) bool {
		if n.Kind == ir.ExprField {
			if b.g.Field(n.Field.Field) == nil {
				dangling = b.dangling(n.Field.String())
				return false
			}
			b.read(op, n.Field)
		}
		return true
	})
	return dangling
}

func (b *builder) read(op *Op, path ir.FieldPath) {
	node := b.g.Fields[path.Field]
	if !containsOp(node.Reads, op) {
		node.Reads = append(node.Reads, op)
	}
	if !containsPath(op.Reads, path) {
		op.Reads = append(op.Reads, path)
	}
}

func (b *builder) write(op *Op, path ir.FieldPath) {
	node := b.g.Fields[path.Field]
	if !containsOp(node.Writes, op) {
		node.Writes = append(node.Writes, op)
	}
	if !containsPath(op.Writes, path) {
		op.Writes = append(op.Writes, path)
	}
}

// checkInitReadConflict rejects handlers that read stored attributes of
// a field tagged as newly initialized: a new account has no pre-existing
// state to read.
func (b *builder) checkInitReadConflict() *MalformedProgramError {
	for _, name := range b.g.FieldOrder {
		node := b.g.Fields[name]
		if !node.Field.Has(ir.ConstraintInit) {
			continue
		}
		for _, op := range node.Reads {
			for _, ref := range op.Reads {
				if ref.Field == name && ref.Attr != "" {
					return &MalformedProgramError{
						Code:        DefectInitReadConflict,
						Instruction: b.g.Instruction,
						Subject:     ref.String(),
						Message:     "field tagged as newly initialized is also read as pre-existing state",
					}
				}
			}
		}
	}
	return nil
}

func containsOp(ops []*Op, op *Op) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func containsPath(paths []ir.FieldPath, p ir.FieldPath) bool {
	for _, q := range paths {
		if q == p {
			return true
		}
	}
	return false
}
