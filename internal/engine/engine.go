package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/rules"
)

// Analyzer evaluates the rule registry over a program's constraint
// graphs. An Analyzer is immutable after construction and safe for
// concurrent use.
type Analyzer struct {
	rules   []rules.Rule
	workers int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWorkers sets the worker-pool size. Values below 1 fall back to
// sequential evaluation. The output is identical at every worker count.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithRules replaces the default rule registry. The slice is copied to
// prevent external mutation.
func WithRules(rs []rules.Rule) Option {
	return func(a *Analyzer) {
		a.rules = make([]rules.Rule, len(rs))
		copy(a.rules, rs)
	}
}

// New creates an Analyzer with the full rule registry and one worker per
// CPU.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:   rules.Registry(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a
}

// Result is the outcome of one analysis run: the ordered findings plus
// any structural defects that aborted individual instructions.
type Result struct {
	Findings []ir.Finding
	Defects  []*graph.MalformedProgramError
}

// Run analyzes every instruction in the program.
//
// Malformed instructions are reported in Result.Defects and logged;
// they never abort the run. The returned findings are deduplicated and
// deterministically ordered. The only error returned is context
// cancellation.
func (a *Analyzer) Run(ctx context.Context, p *ir.Program) (*Result, error) {
	graphs, defects := graph.Build(p)
	for _, d := range defects {
		slog.Error("structural defect, instruction skipped",
			"program", p.Name,
			"code", string(d.Code),
			"instruction", d.Instruction,
			"subject", d.Subject,
		)
	}

	agg := newAggregator()

	// One task per instruction, in declaration order. Output order is
	// decided by the aggregator, so scheduling order is irrelevant.
	tasks := make(chan *graph.ConstraintGraph)
	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range tasks {
				agg.Add(a.evaluate(g)...)
			}
		}()
	}

	var cancelled error
feed:
	for i := range p.Handlers {
		g, ok := graphs[p.Handlers[i].Name]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			cancelled = err
			break feed
		}
		select {
		case tasks <- g:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	if cancelled != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", cancelled)
	}

	result := &Result{
		Findings: agg.Finalize(),
		Defects:  defects,
	}
	slog.Info("analysis complete",
		"program", p.Name,
		"instructions", len(graphs),
		"findings", len(result.Findings),
		"defects", len(result.Defects),
	)
	return result, nil
}

// Analyze runs the full program and returns the ordered finding
// sequence. Total and side-effect-free over any well-formed model.
func (a *Analyzer) Analyze(ctx context.Context, p *ir.Program) ([]ir.Finding, error) {
	result, err := a.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	return result.Findings, nil
}

// AnalyzeInstruction re-checks a single instruction. Unlike Run, a
// structural defect is returned as the error: with one instruction there
// is nothing left to continue with.
func (a *Analyzer) AnalyzeInstruction(ctx context.Context, p *ir.Program, instruction string) ([]ir.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	h := p.Handler(instruction)
	if h == nil {
		return nil, fmt.Errorf("program %q has no instruction %q", p.Name, instruction)
	}

	g, defect := graph.BuildInstruction(p, h)
	if defect != nil {
		slog.Error("structural defect",
			"program", p.Name,
			"code", string(defect.Code),
			"instruction", defect.Instruction,
			"subject", defect.Subject,
		)
		return nil, defect
	}

	agg := newAggregator()
	agg.Add(a.evaluate(g)...)
	return agg.Finalize(), nil
}

// evaluate runs every registered rule over one graph. Rules are pure
// predicates; per-rule detail is logged at debug level only.
func (a *Analyzer) evaluate(g *graph.ConstraintGraph) []ir.Finding {
	var findings []ir.Finding
	for _, rule := range a.rules {
		hits := rule.Check(g)
		if len(hits) > 0 {
			slog.Debug("rule fired",
				"rule", string(rule.ID),
				"instruction", g.Instruction,
				"count", len(hits),
			)
		}
		findings = append(findings, hits...)
	}
	return findings
}

// Rules returns the registered rules in declaration order. Used for
// introspection and tests.
func (a *Analyzer) Rules() []rules.Rule {
	return a.rules
}
