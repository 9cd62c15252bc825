package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hubmapy/internal/config"
	"github.com/roach88/hubmapy/internal/engine"
	"github.com/roach88/hubmapy/internal/engine/bridge"
	"github.com/roach88/hubmapy/internal/engine/robot"
	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/hubmap"
	"github.com/roach88/hubmapy/internal/store"
)

// RootOptions holds the command's flags and test seams.
type RootOptions struct {
	Query  string
	Output string
	Name   string

	// LoadConfig overrides configuration loading (for testing).
	// If nil, defaults to config.Load.
	LoadConfig func() (config.Config, error)

	// Dial overrides the engine dialer built from configuration (for testing).
	Dial engine.Dialer
}

// NewRootCommand creates the hubmapy command.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the hubmapy command with the given
// options. Flags are parsed into opts.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hubmapy",
		Short: "Query the HuBMAP Human Reference Atlas ontology",
		Long: `Run a SPARQL query against the reasoned HuBMAP Human Reference Atlas
ontology and write the results as CSV.

The ontology is loaded and classified once, then the query in the given
file is executed. Engine and ontology settings are read from the file named
by HUBMAPY_CONFIG, or ./hubmapy.yaml when present.

Example:
  hubmapy -q cell_types.rq
  hubmapy -q cell_types.rq -o ./results -n pancreas_cells`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "input query file containing a single SPARQL query (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output folder for query results files (default: configured output or current directory)")
	cmd.Flags().StringVarP(&opts.Name, "name", "n", hubmap.DefaultFileQueryName, "name of the query, used for the results file name")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *RootOptions) error {
	load := opts.LoadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return fail(&OutputFormatter{Format: "text", Writer: cmd.OutOrStdout()}, "invalid configuration", err)
	}
	if opts.Output != "" {
		cfg.Output = opts.Output
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:  cfg.OutputFormat,
		Writer:  cmd.OutOrStdout(),
		Verbose: cfg.LogLevel == "debug",
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dial := opts.Dial
	if dial == nil {
		dial = dialerFor(cfg, logger)
	}

	hubmapOpts := hubmap.Options{
		Ontology:         cfg.Ontology,
		OutputDir:        cfg.Output,
		TimestampResults: cfg.TimestampResults,
		Reasoner:         cfg.Engine.Reasoner,
		AxiomGenerators:  cfg.Engine.AxiomGenerators,
		Logger:           logger,
	}

	if cfg.HistoryDB != "" {
		logger.Debug("opening run history", "path", cfg.HistoryDB)
		history, err := store.Open(cfg.HistoryDB)
		if err != nil {
			return fail(formatter, "failed to open run history",
				errs.Wrap(errs.CodeIO, "cli.history", "cannot open run history "+cfg.HistoryDB, err))
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				logger.Error("error closing run history", "error", closeErr)
			}
		}()
		hubmapOpts.History = history
	}

	client, err := hubmap.New(ctx, dial, hubmapOpts)
	if err != nil {
		return fail(formatter, "failed to open ontology", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("error closing engine", "error", closeErr)
		}
	}()

	res, err := client.QueryFromFile(ctx, opts.Query, opts.Name)
	if err != nil {
		return fail(formatter, "query failed", err)
	}

	name := opts.Name
	if name == "" {
		name = hubmap.DefaultFileQueryName
	}
	return formatter.Success(NewQuerySummary(name, res))
}

// fail reports err through the formatter and returns it with the exit
// code of its category.
func fail(f *OutputFormatter, message string, err error) error {
	code := string(errs.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}
	var details interface{}
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		details = e.Err.Error()
	}
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCodeFor(err), message, err)
}

// dialerFor builds the engine dialer selected by configuration.
func dialerFor(cfg config.Config, logger *slog.Logger) engine.Dialer {
	switch cfg.Engine.Backend {
	case config.BackendBridge:
		return bridge.Dialer(bridge.Config{
			Command:          cfg.Engine.Command,
			HandshakeTimeout: cfg.Engine.HandshakeTimeout,
			Logger:           logger,
		})
	case config.BackendRobot:
		return robot.Dialer(robot.Config{
			Command: cfg.Engine.Command,
			WorkDir: cfg.Engine.WorkDir,
			Logger:  logger,
		})
	}
	return func(context.Context) (engine.Backend, error) {
		return nil, errs.New(errs.CodeConfig, "cli.dial", fmt.Sprintf("unknown engine backend %q", cfg.Engine.Backend))
	}
}
