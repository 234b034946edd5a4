// Package rules implements the detection rule sets.
//
// Each rule is a pure function from one ConstraintGraph to a sequence of
// findings: no shared mutable state, no cross-instruction state, no
// dynamic dispatch. Rules are composed via a fixed registry in
// declaration order; a rule that cannot decide emits no finding rather
// than failing the run.
//
// Rule inventory:
//   - R1  MissingSignerOnAuthority (Critical)
//   - R2  MissingOwnershipLink (High)
//   - R3A UncheckedAccumulation (High)
//   - R3B PrecisionOrderHazard (Medium)
//   - R4  UnvalidatedOracleInput (High)
//   - R5  ReinitializableState (Critical)
package rules
