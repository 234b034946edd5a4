package graph

import (
	"errors"
	"fmt"
)

// DefectCode categorizes structural-model defects. Defects are input
// errors, never vulnerability findings.
type DefectCode string

const (
	// DefectDanglingFieldRef indicates a handler references a field name
	// absent from its declared account context.
	DefectDanglingFieldRef DefectCode = "DANGLING_FIELD_REF"

	// DefectUnknownContext indicates a handler references a context the
	// program does not declare.
	DefectUnknownContext DefectCode = "UNKNOWN_CONTEXT"

	// DefectContextReuse indicates a context is referenced by more than
	// one handler.
	DefectContextReuse DefectCode = "CONTEXT_REUSE"

	// DefectContextUnused indicates a context no handler references.
	// Program-level: it aborts no instruction.
	DefectContextUnused DefectCode = "CONTEXT_UNUSED"

	// DefectInitReadConflict indicates a field tagged as newly
	// initialized is also read as pre-existing state in the same
	// handler.
	DefectInitReadConflict DefectCode = "INIT_READ_CONFLICT"
)

// MalformedProgramError is a structural defect in the model supplied by
// the front-end parser. Instruction is empty for program-level defects.
type MalformedProgramError struct {
	Code        DefectCode
	Instruction string
	Subject     string // offending field, context, or path
	Message     string
}

// Error implements the error interface.
func (e *MalformedProgramError) Error() string {
	if e.Instruction != "" {
		return fmt.Sprintf("%s: %s (instruction=%s, subject=%s)", e.Code, e.Message, e.Instruction, e.Subject)
	}
	return fmt.Sprintf("%s: %s (subject=%s)", e.Code, e.Message, e.Subject)
}

// IsMalformed reports whether err is (or wraps) a structural-model
// defect.
func IsMalformed(err error) bool {
	var me *MalformedProgramError
	return errors.As(err, &me)
}
