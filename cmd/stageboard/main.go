package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/stageboard/internal/adapters/server"
	"github.com/evanschultz/stageboard/internal/adapters/server/common"
	"github.com/evanschultz/stageboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/config"
	"github.com/evanschultz/stageboard/internal/drag"
	"github.com/evanschultz/stageboard/internal/platform"
	"github.com/evanschultz/stageboard/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the terminal program for the board model.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP, MCP and websocket serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes the command tree without fang styling.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if args == nil {
		args = []string{}
	}
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	stdout     io.Writer
	stderr     io.Writer
}

// newRootCmd builds the command tree. The bare command opens the terminal board.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	envOpts, envErr := platform.OptionsFromEnv(platform.Options{
		AppName: platform.DefaultAppName,
		DevMode: version == "dev",
	}, os.Getenv)

	root := &cobra.Command{
		Use:           "stageboard",
		Short:         "Event production scheduling board",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return envErr
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("stageboard {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", envOpts.AppName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", envOpts.DevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCmd(opts),
		newRowsCmd(opts),
		newServeCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// newPathsCmd prints the resolved config, data and database paths.
func newPathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := opts.stdout
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			return nil
		},
	}
}

// newRowsCmd prints the filtered row tree.
func newRowsCmd(opts *rootOptions) *cobra.Command {
	var (
		expandAll bool
		sections  []string
		stages    []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print the board row tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd.Context(), "rows", func(ctx context.Context, rt *cliRuntime) error {
				rows, err := common.NewAppServiceAdapter(rt.svc).Rows(ctx, common.RowsRequest{
					ExpandAll:        expandAll || rt.cfg.Board.ExpandAll,
					ExpandedSections: append(append([]string(nil), rt.cfg.Board.ExpandedSections...), sections...),
					ExpandedStages:   stages,
				})
				if err != nil {
					return fmt.Errorf("load rows: %w", err)
				}
				if asJSON {
					return writeJSON(opts.stdout, rows)
				}
				return writeRowTree(opts.stdout, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&expandAll, "all", false, "expand every section and stage")
	cmd.Flags().StringSliceVar(&sections, "section", nil, "section id to expand (repeatable)")
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "stage row id to expand (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows and segments as JSON")
	return cmd
}

// newServeCmd starts the HTTP API, MCP and websocket endpoints.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint, wsEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP, MCP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd.Context(), "serve", func(ctx context.Context, rt *cliRuntime) error {
				adapter := common.NewAppServiceAdapter(rt.svc)
				return serveCommandRunner(ctx, server.Config{
					HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					WSEndpoint:    firstNonEmpty(wsEndpoint, rt.cfg.Server.WSEndpoint),
					ServerName:    opts.appName,
					ServerVersion: version,
				}, server.Dependencies{
					Board:    adapter,
					Notifier: adapter,
					Logger:   rt.logger.Primary(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	cmd.Flags().StringVar(&wsEndpoint, "ws-endpoint", "", "websocket change feed endpoint")
	return cmd
}

// newExportCmd writes a JSON snapshot of the board.
func newExportCmd(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the board as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd.Context(), "export", func(ctx context.Context, rt *cliRuntime) error {
				return runExport(ctx, rt.svc, outPath, opts.stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCmd loads a JSON snapshot into the board.
func newImportCmd(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			return opts.withRuntime(cmd.Context(), "import", func(ctx context.Context, rt *cliRuntime) error {
				return runImport(ctx, rt.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// cliRuntime is the opened state shared by the data commands.
type cliRuntime struct {
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// paths resolves platform paths with env overrides.
func (o *rootOptions) paths() (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	return paths.WithEnvOverrides(os.Getenv), nil
}

// withRuntime opens config, logging and storage for one command and closes them after fn.
func (o *rootOptions) withRuntime(ctx context.Context, command string, fn func(context.Context, *cliRuntime) error) error {
	rt, err := o.open(command)
	if err != nil {
		return err
	}
	defer rt.close(o.stderr)

	rt.logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}

// open resolves config and opens the repository.
func (o *rootOptions) open(command string) (*cliRuntime, error) {
	paths, err := o.paths()
	if err != nil {
		return nil, err
	}
	configPath := firstNonEmpty(o.configPath, paths.ConfigPath)
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != "" || strings.TrimSpace(os.Getenv(platform.EnvDBPath)) != ""
	if dbPath == "" {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs go to the dev-file sink only while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		SupportsCustomCategories: cfg.Board.CustomCategories,
		Logger:                   logger,
	})
	logger.Debug("application service initialized", "custom_categories", cfg.Board.CustomCategories)
	return &cliRuntime{configPath: configPath, cfg: cfg, logger: logger, repo: repo, svc: svc}, nil
}

// close releases the repository and the log file.
func (rt *cliRuntime) close(stderr io.Writer) {
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// runTUI opens the terminal board.
func runTUI(ctx context.Context, opts *rootOptions) error {
	return opts.withRuntime(ctx, "tui", func(_ context.Context, rt *cliRuntime) error {
		cfg := rt.cfg
		m := tui.NewModel(
			rt.svc,
			tui.WithLogger(rt.logger),
			tui.WithDragConfig(drag.Config{ActivationDistance: cfg.Drag.ActivationDistance}),
			tui.WithCellSize(cfg.TUI.CellWidth, cfg.TUI.CellHeight),
			tui.WithExpandAll(cfg.Board.ExpandAll),
			tui.WithExpandedSections(cfg.Board.ExpandedSections...),
			tui.WithKeys(tui.KeyOverrides{
				ToggleActive: cfg.Keys.ToggleActive,
				AddTask:      cfg.Keys.AddTask,
				CopyID:       cfg.Keys.CopyID,
				Help:         cfg.Keys.Help,
			}),
		)
		rt.logger.Info("starting tui program loop")
		if _, err := programFactory(m).Run(); err != nil {
			return fmt.Errorf("run tui program: %w", err)
		}
		return nil
	})
}

// runExport writes the snapshot to outPath, or stdout for "-".
func runExport(ctx context.Context, svc *app.Service, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport reads a snapshot file and applies it.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRowTree prints one line per row, indented by depth.
func writeRowTree(w io.Writer, rows common.BoardRows) error {
	if len(rows.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no sections")
		return err
	}
	for _, row := range rows.Rows {
		label := row.Name
		switch row.Kind {
		case string(board.KindAddPhantom), string(board.KindAddCategoryPhantom):
			label = "+ add task"
		}
		if label == "" {
			label = row.ID
		}
		line := strings.Repeat("  ", row.Depth) + label
		if row.TaskCount > 0 {
			line += fmt.Sprintf(" (%d)", row.TaskCount)
		}
		if row.TaskID != "" {
			line += "  [" + row.TaskID + "]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	devLogPath, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Primary returns the single sink handed to components that take a *log.Logger: the
// dev file when enabled, the console otherwise.
func (l *runtimeLogger) Primary() *charmLog.Logger {
	if l == nil || len(l.sinks) == 0 {
		return nil
	}
	return l.sinks[len(l.sinks)-1]
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// shouldLogToSink reports whether one sink should receive runtime output.
func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	return sink != l.consoleSink || l.consoleEnabled
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if l.shouldLogToSink(sink) {
			fn(sink)
		}
	}
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg any, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Debug(msg, keyvals...) })
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg any, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Info(msg, keyvals...) })
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg any, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Warn(msg, keyvals...) })
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg any, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Error(msg, keyvals...) })
}

// devLogFilePath resolves a workspace-local dev log file path for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".stageboard/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(workspaceRootFrom(cwd), baseDir)
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName), nil
}

// workspaceRootFrom resolves the nearest ancestor holding go.mod or .git.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// hasWorkspaceMarker reports whether a directory looks like a project workspace root.
func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// sanitizeLogFileStem normalizes app names into safe file-name segments.
func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return platform.DefaultAppName
	}
	return stem
}
