package harness

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/grkhmz23/solaudit-agent/internal/compiler"
	"github.com/grkhmz23/solaudit-agent/internal/engine"
	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Passed is true when every expectation was met.
	Passed bool

	// Program is the analyzed program name.
	Program string

	// Findings are the actual findings, in report order.
	Findings []ir.Finding

	// Defects are the structural defects reported by the run.
	Defects []*graph.MalformedProgramError

	// Errors describes every unmet expectation.
	Errors []string
}

// AddError records an expectation failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Passed = false
	r.Errors = append(r.Errors, msg)
}

// Run executes a scenario and returns the result.
//
// The fixture is compiled fresh for every run; scenarios share no
// state. Returns an error only when the scenario itself cannot be
// executed (unreadable fixture, compile failure). Expectation failures
// are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	p, err := compileFixture(scenario.Fixture, scenario.Program)
	if err != nil {
		return nil, err
	}

	analyzer := engine.New()
	run, err := analyzer.Run(context.Background(), p)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	result := &Result{
		Passed:   true,
		Program:  p.Name,
		Findings: run.Findings,
		Defects:  run.Defects,
	}
	evaluate(scenario, result)
	return result, nil
}

// compileFixture loads one program from a CUE fixture file.
func compileFixture(path, program string) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile fixture %s: %w", path, err)
	}

	if program != "" {
		pv := v.LookupPath(cue.ParsePath("program." + program))
		if !pv.Exists() {
			return nil, fmt.Errorf("fixture %s declares no program %q", path, program)
		}
		return compiler.CompileProgram(pv)
	}

	programs, err := compiler.CompilePrograms(v)
	if err != nil {
		return nil, err
	}
	if len(programs) != 1 {
		return nil, fmt.Errorf("fixture %s declares %d programs, scenario must name one", path, len(programs))
	}
	return programs[0], nil
}

// evaluate checks the scenario's expectations against the run result.
func evaluate(scenario *Scenario, result *Result) {
	for i, exp := range scenario.Expect {
		if !matchFinding(exp, result.Findings) {
			result.AddError(fmt.Sprintf("expect[%d]: no finding matches rule=%s instruction=%s",
				i, exp.Rule, exp.Instruction))
		}
	}

	if scenario.Exact && len(result.Findings) != len(scenario.Expect) {
		result.AddError(fmt.Sprintf("expected exactly %d finding(s), got %d",
			len(scenario.Expect), len(result.Findings)))
	}

	for _, code := range scenario.ExpectDefects {
		if !matchDefect(code, result.Defects) {
			result.AddError(fmt.Sprintf("no structural defect with code %s", code))
		}
	}
}

// matchFinding reports whether any actual finding satisfies the
// expectation. Optional fields are checked only when set.
func matchFinding(exp ExpectedFinding, findings []ir.Finding) bool {
	for _, f := range findings {
		if string(f.Rule) != exp.Rule || f.Instruction != exp.Instruction {
			continue
		}
		if exp.Location != "" && f.Location != exp.Location {
			continue
		}
		if exp.Severity != "" && string(f.Severity) != exp.Severity {
			continue
		}
		return true
	}
	return false
}

func matchDefect(code string, defects []*graph.MalformedProgramError) bool {
	for _, d := range defects {
		if string(d.Code) == code {
			return true
		}
	}
	return false
}
