package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/eval"
	"github.com/converge-sh/converge/internal/ir"
	"github.com/converge-sh/converge/internal/logging"
	"github.com/converge-sh/converge/providers"
)

var (
	flagInput    string
	flagDryRun   bool
	flagOnly     []string
	flagParallel int
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Declarative single-host convergence",
	Long: `Converge reads a declaration of desired host state (PKL, TOML or YAML),
validates the resource graph, and converges each resource idempotently in
dependency order.

Convergence is best-effort: a failed resource skips its dependents but
nothing already applied is rolled back.`,
	SilenceUsage: true,
	RunE:         runConverge,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagInput, "input", "", "declaration file (.pkl, .toml or .yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "probe live state only; apply nothing")
	rootCmd.Flags().StringSliceVar(&flagOnly, "only", nil, "converge only these resource ids (plus their requirements)")
	rootCmd.Flags().IntVar(&flagParallel, "parallel", 1, "max mutually unordered resources converged at once")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitError carries the process exit code for main. Validation failures are
// 2; a run with failed or skipped resources is 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an Execute error to the process exit status.
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// loadGraph loads and validates the declaration; every error here happens
// before execution and maps to exit code 2.
func loadGraph(cmd *cobra.Command) (*ir.Declaration, *engine.Graph, error) {
	if flagInput == "" {
		return nil, nil, &exitError{code: 2, err: errors.New("--input is required")}
	}
	decl, err := eval.Load(cmd.Context(), flagInput)
	if err != nil {
		return nil, nil, &exitError{code: 2, err: err}
	}
	g, err := engine.BuildGraph(decl)
	if err != nil {
		return nil, nil, &exitError{code: 2, err: err}
	}
	return decl, g, nil
}

func runConverge(cmd *cobra.Command, args []string) error {
	logging.Init(flagLogLevel)

	decl, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}

	only, err := parseOnly(flagOnly)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	registry := providers.NewRegistry(providers.Options{Settings: decl.Settings})
	exec := engine.NewExecutor(registry)
	exec.DryRun = flagDryRun
	exec.Parallelism = flagParallel
	exec.Callback = renderEvent

	if flagDryRun {
		fmt.Println("Dry run: probing live state, applying nothing.")
	}

	report, err := exec.Run(cmd.Context(), g, only)
	if err != nil {
		return err
	}

	renderReport(report)

	if report.Status != ir.RunSuccess {
		return &exitError{code: 1, err: fmt.Errorf("run %s failed: %d failed, %d skipped", report.RunID, report.Failed, report.Skipped)}
	}
	return nil
}

func parseOnly(ids []string) ([]ir.Ref, error) {
	var refs []ir.Ref
	for _, id := range ids {
		ref, err := ir.ParseRef(id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
