package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/session"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	session    *session.Session
	started    bool
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Session is used as-is when set; otherwise one is built on first use from Config, backed by the sqlite database.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Session    *session.Session
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		session:    opts.Session,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, likedCommand, playlistsCommand, settingsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// flags are the root flags every subcommand can read.
func (r *Runner) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "Additional .env files to load",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// Configure loads the config file when present, applies environment overrides and sets the log level.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := r.config.ApplyEnv(cmd.StringSlice("env-file")...); err != nil {
		return ctx, err
	}

	shared.SetLogLevel(r.logger, r.config.LogLevel())
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// SetLogger replaces the logger. Must be called before the session is opened to reach it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// open returns the started session, building it on first use.
func (r *Runner) open(ctx context.Context) (*session.Session, error) {
	if r.session == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db

		client := r.httpClient
		if r.config.API.TimeoutSeconds > 0 {
			client = &http.Client{
				Transport: r.httpClient.Transport,
				Timeout:   time.Duration(r.config.API.TimeoutSeconds) * time.Second,
			}
		}

		r.session = session.New(session.Options{
			BaseURL:    r.config.API.BaseURL,
			HTTPClient: client,
			KV:         store.NewSQLiteKV(db),
			Snapshots:  store.NewSQLiteSnapshots(db),
			RateLimit:  r.config.API.RateLimit,
			Burst:      r.config.API.Burst,
			Logger:     r.logger,
		})
	}

	if !r.started {
		if err := r.session.Start(ctx); err != nil {
			// A failed first refresh still leaves a usable session; commands report their own errors.
			r.logger.Warn("initial refresh failed", "error", err)
		}
		r.started = true
	}
	return r.session, nil
}

// Close releases the session and the database.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
	}
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// writeRendered writes data to path when set, otherwise to the runner's output.
func (r *Runner) writeRendered(data []byte, path string) error {
	if path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.logger.Info("wrote output", "path", path, "bytes", len(data))
		return r.writePlain("✓ Saved to %s\n", path)
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		if _, err := r.output.Write([]byte("\n")); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
