package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/grkhmz23/solaudit-agent/internal/engine"
	"github.com/grkhmz23/solaudit-agent/internal/graph"
	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/store"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Database string
	FailOn   string
	Workers  int
}

// ProgramReport is the scan result for one fixture program.
type ProgramReport struct {
	Program  string       `json:"program"`
	ScanID   string       `json:"scan_id,omitempty"`
	Findings []ir.Finding `json:"findings"`
	Defects  []DefectInfo `json:"defects,omitempty"`
}

// DefectInfo describes a malformed instruction that was skipped.
type DefectInfo struct {
	Code        string `json:"code"`
	Instruction string `json:"instruction,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Message     string `json:"message"`
}

// ScanReport is the scan result across all loaded programs.
type ScanReport struct {
	Programs []ProgramReport `json:"programs"`
	Total    int             `json:"total_findings"`
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <fixture-path>",
		Short: "Analyze fixture programs and report findings",
		Long: `Analyze CUE fixture programs and report vulnerability findings.

Loads one fixture file or a directory of them, compiles each declared
program, and runs the full rule registry over it. Findings are ordered
by severity, then instruction, rule, and location. Malformed
instructions are reported as defects and skipped.

Example:
  solaudit scan ./fixtures/vault.cue
  solaudit scan ./fixtures --fail-on critical --db ./scans.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for scan history (optional)")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "high", "minimum severity that causes a non-zero exit (critical|high|medium|low|never)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "analysis worker count (0 = one per CPU)")

	return cmd
}

func runScan(opts *ScanOptions, fixturePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	configureLogging(opts.Verbose)

	var threshold ir.Severity
	if opts.FailOn != "never" {
		var err error
		threshold, err = ir.ParseSeverity(opts.FailOn)
		if err != nil {
			msg := fmt.Sprintf("invalid --fail-on %q: must be critical, high, medium, low, or never", opts.FailOn)
			_ = formatter.Error(ErrCodeGeneric, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}

	loadResult, loadErrors := LoadFixtures(fixturePath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputLoadError(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s), %d program(s) in %s",
		loadResult.FileCount, len(loadResult.Programs), fixturePath)

	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, "failed to open database", err.Error())
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	analyzer := engine.New(engine.WithWorkers(opts.Workers))
	report := ScanReport{}
	failed := false
	for _, p := range loadResult.Programs {
		result, err := analyzer.Run(ctx, p)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, "analysis failed", err.Error())
			return WrapExitError(ExitCommandError, "analysis failed", err)
		}

		pr := ProgramReport{
			Program:  p.Name,
			Findings: result.Findings,
			Defects:  defectInfos(result.Defects),
		}

		if st != nil {
			scan, err := st.RecordScan(ctx, p, fixturePath, result.Findings, len(result.Defects))
			if err != nil {
				_ = formatter.Error(ErrCodeDatabase, "failed to record scan", err.Error())
				return WrapExitError(ExitCommandError, "failed to record scan", err)
			}
			pr.ScanID = scan.ID
			formatter.VerboseLog("Recorded scan %s for program %s", scan.ID, p.Name)
		}

		report.Programs = append(report.Programs, pr)
		report.Total += len(result.Findings)
		if opts.FailOn != "never" && exceedsThreshold(result.Findings, threshold) {
			failed = true
		}
	}

	if err := outputScanReport(formatter, &report); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("findings at or above %s severity", opts.FailOn))
	}
	return nil
}

// configureLogging routes slog output to stderr at a level matching the
// verbose flag.
func configureLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// exceedsThreshold reports whether any finding ranks at or above the
// failure threshold.
func exceedsThreshold(findings []ir.Finding, threshold ir.Severity) bool {
	for _, f := range findings {
		if f.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

func defectInfos(defects []*graph.MalformedProgramError) []DefectInfo {
	var out []DefectInfo
	for _, d := range defects {
		out = append(out, DefectInfo{
			Code:        string(d.Code),
			Instruction: d.Instruction,
			Subject:     d.Subject,
			Message:     d.Message,
		})
	}
	return out
}

// outputLoadError reports a fixture load failure and maps it to a
// command-level exit code.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}

// outputScanReport renders the scan report in the configured format.
func outputScanReport(formatter *OutputFormatter, report *ScanReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	for _, pr := range report.Programs {
		fmt.Fprintf(formatter.Writer, "program %s: %d finding(s)\n", pr.Program, len(pr.Findings))
		for _, f := range pr.Findings {
			fmt.Fprintf(formatter.Writer, "  [%s] %s %s %s: %s\n",
				string(f.Severity), string(f.Rule), f.Instruction, f.Location, f.Message)
		}
		for _, d := range pr.Defects {
			fmt.Fprintf(formatter.Writer, "  defect [%s] %s: %s\n", d.Code, d.Instruction, d.Message)
		}
		if pr.ScanID != "" {
			fmt.Fprintf(formatter.Writer, "  recorded as scan %s\n", pr.ScanID)
		}
	}
	fmt.Fprintf(formatter.Writer, "%d finding(s) total\n", report.Total)
	return nil
}
