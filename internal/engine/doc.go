// Package engine orchestrates the analysis run.
//
// ARCHITECTURE:
//
// Analysis is embarrassingly parallel across instructions: each
// handler's constraint graph is built and evaluated independently with
// no shared mutable state, so the engine schedules one task per
// instruction over a bounded worker pool. The structural model is
// read-only once loaded and safely shared by all workers.
//
// The only mutable shared sink is the finding aggregator, which
// serializes concurrent submissions and runs a three-phase pipeline:
//
//	Collect -> Deduplicate (by instruction, location, rule id)
//	        -> Order (severity desc, instruction, rule id, location)
//
// The ordered output is therefore deterministic and reproducible
// regardless of worker count or scheduling order.
//
// ERROR HANDLING: a malformed instruction is logged as a structured
// defect and skipped; the remaining instructions are analyzed normally.
// A single bad instruction never aborts the run. Findings are the
// engine's normal output, never an error path.
package engine
