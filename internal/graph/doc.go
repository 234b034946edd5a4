// Package graph builds per-instruction constraint graphs from the
// structural model.
//
// A ConstraintGraph is a bipartite structure: account-field nodes (with
// their declared constraint sets) on one side, privileged-operation
// nodes (cross-program invocations and assignments to persistent fields)
// on the other. An edge exists wherever an operation reads or writes a
// field. Guards are carried alongside so rules can check for explicit
// failure-path checks without re-walking the handler body.
//
// Construction is pure and total: every field in a context and every
// statement in the corresponding body is represented; nothing is dropped
// silently. A handler referencing a field absent from its declared
// context is a MalformedProgram defect, which aborts analysis of that
// one instruction while the rest of the program continues.
package graph
