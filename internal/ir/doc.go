// Package ir provides the structural model for analyzed programs.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the structural model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Constraints are a set-valued tagged-variant attribute on each
//     AccountField, never inheritance or reflection
//   - CPIInvocation and ArithmeticExpr hold field references by name,
//     never ownership, into the enclosing AccountContext
//   - A Program is immutable after construction; every consumer treats
//     it as read-only shared state
//   - Finding identity is (instruction, location, rule id) and is
//     content-addressable via FindingID
package ir
