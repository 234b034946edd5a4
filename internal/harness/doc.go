// Package harness provides a conformance testing framework for the
// detection core.
//
// A scenario is a YAML file that names a CUE fixture program and the
// findings the analyzer is expected to produce for it. The harness
// compiles the fixture, runs the full rule registry, and checks the
// report against the scenario's expectations. Golden snapshots capture
// the complete report in canonical JSON so any drift in finding
// content or ordering shows up as a byte-level diff.
package harness
