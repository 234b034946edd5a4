package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
	"github.com/grkhmz23/solaudit-agent/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// ScanDetail is one recorded scan with its findings.
type ScanDetail struct {
	Scan     store.Scan   `json:"scan"`
	Findings []ir.Finding `json:"findings"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show recorded scans",
		Long: `Show scans recorded in the history database.

Without arguments, lists recorded scans most recent first. With a scan
ID, shows that scan and its findings in report order.

Example:
  solaudit history --db ./scans.db
  solaudit history --db ./scans.db 5f0c2a6e-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(opts, args[0], cmd)
			}
			return runHistoryList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum scans to list (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openHistory(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeHistory(st)

	scans, err := st.ListScans(commandContext(cmd), opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to list scans", err.Error())
		return WrapExitError(ExitCommandError, "failed to list scans", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(scans)
	}

	if len(scans) == 0 {
		fmt.Fprintln(formatter.Writer, "no scans recorded")
		return nil
	}
	for _, s := range scans {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s  findings=%d defects=%d\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Program, s.FindingCount, s.DefectCount)
	}
	return nil
}

func runHistoryShow(opts *HistoryOptions, scanID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openHistory(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeHistory(st)

	ctx := commandContext(cmd)
	scan, err := st.ReadScan(ctx, scanID)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("scan %s not found", scanID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to read scan", err.Error())
		return WrapExitError(ExitCommandError, "failed to read scan", err)
	}

	findings, err := st.ReadFindings(ctx, scanID)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to read findings", err.Error())
		return WrapExitError(ExitCommandError, "failed to read findings", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ScanDetail{Scan: scan, Findings: findings})
	}

	fmt.Fprintf(formatter.Writer, "scan %s\n", scan.ID)
	fmt.Fprintf(formatter.Writer, "  program:  %s (%s)\n", scan.Program, scan.ProgramHash)
	fmt.Fprintf(formatter.Writer, "  fixture:  %s\n", scan.FixturePath)
	fmt.Fprintf(formatter.Writer, "  recorded: %s\n", scan.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(formatter.Writer, "  findings: %d, defects: %d\n", scan.FindingCount, scan.DefectCount)
	for _, f := range findings {
		fmt.Fprintf(formatter.Writer, "  [%s] %s %s %s: %s\n",
			string(f.Severity), string(f.Rule), f.Instruction, f.Location, f.Message)
	}
	return nil
}

func openHistory(formatter *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to open database", err.Error())
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeHistory(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, falling back to
// Background for direct callers.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
