package compiler

import (
	"fmt"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// Validation error codes (E200-E299).
const (
	// Program-shape errors (E201-E209)
	ErrProgramNoHandlers = "E201" // at least one instruction required
	ErrDuplicateContext  = "E202" // duplicate context name
	ErrDuplicateHandler  = "E203" // duplicate instruction name
	ErrDuplicateField    = "E204" // duplicate field within one context

	// Reference errors (E210-E219)
	ErrUnknownContext  = "E210" // handler references undeclared context
	ErrContextReuse    = "E211" // context referenced by more than one handler
	ErrContextUnused   = "E212" // context referenced by no handler
	ErrUnknownField    = "E213" // statement references undeclared field
	ErrUnknownParam    = "E214" // expression references undeclared parameter
	ErrInitReadConflict = "E215" // init field read as pre-existing state
)

// ValidationError represents a model-consistency error. Line is only
// set when the error maps back to a fixture source position.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program against model-consistency rules.
// Returns all errors found (does not fail-fast). These are input-shape
// defects, never vulnerability findings.
func Validate(p *ir.Program) []ValidationError {
	var errs []ValidationError

	if len(p.Handlers) == 0 {
		errs = append(errs, ValidationError{
			Field:   "program." + p.Name,
			Message: "at least one instruction is required",
			Code:    ErrProgramNoHandlers,
		})
	}

	contextNames := make(map[string]bool, len(p.Contexts))
	for _, ctx := range p.Contexts {
		if contextNames[ctx.Name] {
			errs = append(errs, ValidationError{
				Field:   "context." + ctx.Name,
				Message: "duplicate context name",
				Code:    ErrDuplicateContext,
			})
		}
		contextNames[ctx.Name] = true

		fieldNames := make(map[string]bool, len(ctx.Fields))
		for _, f := range ctx.Fields {
			if fieldNames[f.Name] {
				errs = append(errs, ValidationError{
					Field:   "context." + ctx.Name + "." + f.Name,
					Message: "duplicate field name within context",
					Code:    ErrDuplicateField,
				})
			}
			fieldNames[f.Name] = true
		}
	}

	handlerNames := make(map[string]bool, len(p.Handlers))
	usage := make(map[string]int, len(p.Contexts))
	for i := range p.Handlers {
		h := &p.Handlers[i]
		if handlerNames[h.Name] {
			errs = append(errs, ValidationError{
				Field:   "instruction." + h.Name,
				Message: "duplicate instruction name",
				Code:    ErrDuplicateHandler,
			})
		}
		handlerNames[h.Name] = true
		usage[h.Context]++

		if !contextNames[h.Context] {
			errs = append(errs, ValidationError{
				Field:   "instruction." + h.Name,
				Message: fmt.Sprintf("references undeclared context %q", h.Context),
				Code:    ErrUnknownContext,
			})
			continue
		}
		errs = append(errs, validateHandler(p, h)...)
	}

	for i := range p.Handlers {
		h := &p.Handlers[i]
		if contextNames[h.Context] && usage[h.Context] > 1 {
			errs = append(errs, ValidationError{
				Field:   "instruction." + h.Name,
				Message: fmt.Sprintf("context %q is referenced by %d handlers, want exactly one", h.Context, usage[h.Context]),
				Code:    ErrContextReuse,
			})
		}
	}
	for _, ctx := range p.Contexts {
		if usage[ctx.Name] == 0 {
			errs = append(errs, ValidationError{
				Field:   "context." + ctx.Name,
				Message: "context is referenced by no handler",
				Code:    ErrContextUnused,
			})
		}
	}

	return errs
}

// validateHandler checks field and parameter references in one handler
// body against its declared context.
func validateHandler(p *ir.Program, h *ir.InstructionHandler) []ValidationError {
	var errs []ValidationError
	ctx := p.Context(h.Context)

	field := func(where string, name string) {
		if ctx.Field(name) == nil {
			errs = append(errs, ValidationError{
				Field:   "instruction." + h.Name + "." + where,
				Message: fmt.Sprintf("references undeclared field %q", name),
				Code:    ErrUnknownField,
			})
		}
	}
	expr := func(where string, e *ir.Expr) {
		e.Walk(func(n *ir.Expr) bool {
			switch n.Kind {
			case ir.ExprField:
				field(where, n.Field.Field)
			case ir.ExprParam:
				if !h.HasParam(n.Param) {
					errs = append(errs, ValidationError{
						Field:   "instruction." + h.Name + "." + where,
						Message: fmt.Sprintf("references undeclared parameter %q", n.Param),
						Code:    ErrUnknownParam,
					})
				}
			}
			return true
		})
	}

	for idx := range h.Body {
		stmt := &h.Body[idx]
		where := fmt.Sprintf("body[%d]", idx)
		switch stmt.Kind {
		case ir.StmtAssign:
			if stmt.Assign == nil {
				continue
			}
			field(where, stmt.Assign.Target.Field)
			expr(where, &stmt.Assign.Value)
		case ir.StmtInvoke:
			if stmt.Invoke == nil {
				continue
			}
			for _, bound := range stmt.Invoke.Roles {
				field(where, bound)
			}
			for _, seed := range stmt.Invoke.SignerSeeds {
				if len(seed) > 0 && seed[0] != '"' {
					field(where, ir.ParsePath(seed).Field)
				}
			}
			if stmt.Invoke.Amount != nil {
				expr(where, stmt.Invoke.Amount)
			}
		case ir.StmtGuard:
			if stmt.Guard == nil {
				continue
			}
			if !stmt.Guard.Subject.IsZero() {
				field(where, stmt.Guard.Subject.Field)
			}
			if stmt.Guard.Param != "" && !h.HasParam(stmt.Guard.Param) {
				errs = append(errs, ValidationError{
					Field:   "instruction." + h.Name + "." + where,
					Message: fmt.Sprintf("references undeclared parameter %q", stmt.Guard.Param),
					Code:    ErrUnknownParam,
				})
			}
		}
	}

	// Init fields read as pre-existing state: a new account has nothing
	// stored to read.
	for _, f := range ctx.Fields {
		if !f.Has(ir.ConstraintInit) {
			continue
		}
		for idx := range h.Body {
			if readsAttrOf(&h.Body[idx], f.Name) {
				errs = append(errs, ValidationError{
					Field:   "instruction." + h.Name + "." + f.Name,
					Message: "field tagged init is also read as pre-existing state",
					Code:    ErrInitReadConflict,
				})
				break
			}
		}
	}

	return errs
}

// readsAttrOf reports whether a statement reads a stored attribute of
// the named field.
func readsAttrOf(stmt *ir.Statement, field string) bool {
	attrRead := func(e *ir.Expr) bool {
		hit := false
		e.Walk(func(n *ir.Expr) bool {
			if n.Kind == ir.ExprField && n.Field.Field == field && n.Field.Attr != "" {
				hit = true
				return false
			}
			return true
		})
		return hit
	}

	switch stmt.Kind {
	case ir.StmtAssign:
		return stmt.Assign != nil && attrRead(&stmt.Assign.Value)
	case ir.StmtInvoke:
		if stmt.Invoke == nil {
			return false
		}
		for _, seed := range stmt.Invoke.SignerSeeds {
			if len(seed) > 0 && seed[0] != '"' {
				ref := ir.ParsePath(seed)
				if ref.Field == field && ref.Attr != "" {
					return true
				}
			}
		}
		return stmt.Invoke.Amount != nil && attrRead(stmt.Invoke.Amount)
	}
	return false
}
