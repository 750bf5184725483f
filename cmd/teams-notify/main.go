package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/config"
	"github.com/nakkulla/teams-notify/pkg/logger"
	"github.com/nakkulla/teams-notify/pkg/notify"
	"github.com/nakkulla/teams-notify/pkg/process"
)

// options are the command line flags
type options struct {
	configPath string
	webhookURL string
	notifyOn   string
	cardFormat string
	logLevel   string
	debug      bool
	quiet      bool
	version    bool
	help       bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("teams-notify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	// Everything after the command belongs to the command
	fs.SetInterspersed(false)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.webhookURL, "webhook-url", "", "Teams incoming webhook URL")
	fs.StringVar(&opts.notifyOn, "on", "", "Notify on failure, completion or both")
	fs.StringVar(&opts.cardFormat, "card-format", "", "Card format: adaptive or connector")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.debug, "debug", false, "Print notifications instead of posting them")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable all notifications")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")
	return fs
}

// overrides applies the flags the user set on top of file and environment
func (o *options) overrides(fs *flag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		if fs.Changed("webhook-url") {
			cfg.WebhookURL = o.webhookURL
		}
		if fs.Changed("on") {
			cfg.NotifyOn = o.notifyOn
		}
		if fs.Changed("card-format") {
			cfg.CardFormat = o.cardFormat
		}
		if fs.Changed("log-level") {
			cfg.LogLevel = o.logLevel
		}
		if fs.Changed("debug") {
			cfg.Debug = o.debug
		}
		if fs.Changed("quiet") {
			cfg.Quiet = o.quiet
		}
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(fs)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 2
	}
	if opts.help {
		printUsage(fs)
		return 0
	}
	if opts.version {
		fmt.Println("teams-notify " + notify.Version)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(fs)
		return 2
	}
	command, args := rest[0], rest[1:]

	// The config path must be known before loading
	if opts.configPath != "" {
		if err := os.Setenv("TEAMS_NOTIFY_CONFIG", opts.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting config path: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(opts.overrides(fs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	var logOpts []logger.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(logger.FileOutput{
			Path:       cfg.LogFile,
			Rotation:   cfg.LogRotation,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
		}))
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, logOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}

	deps, err := NewDependencies(cfg, log)
	if err != nil {
		log.Error("failed to create dependencies", zap.Error(err))
		_ = log.Sync()
		return 1
	}
	defer deps.Close()

	app := NewApplication(deps)

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop()
			panic(r)
		}
	}()

	// The process manager forwards signals to the child. A second interrupt
	// means the child is not exiting, so stop it and give up.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		<-sigChan
		if err := app.Stop(); err != nil {
			log.Warn("failed to stop process", zap.Error(err))
		}
		deps.Close()
		os.Exit(130)
	}()

	log.Debug("starting command",
		zap.String("command", command),
		zap.Strings("args", args),
		zap.String("notify_on", cfg.NotifyOn),
		zap.Bool("quiet", cfg.Quiet))

	if err := app.Run(context.Background(), command, args); err != nil {
		var exitErr *ExitError
		switch {
		case errors.As(err, &exitErr):
		case errors.Is(err, notify.ErrInterrupted):
			log.Debug("command interrupted",
				zap.Duration("silent_for", app.SinceLastOutput()))
		case errors.Is(err, process.ErrAlreadyWrapped):
			log.Error("refusing to wrap teams-notify in itself")
		default:
			log.Error("failed to run command", zap.Error(err))
		}
	}

	return app.ExitCode()
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "teams-notify - run a command and report its outcome to Microsoft Teams")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: teams-notify [OPTIONS] [--] COMMAND [ARGS...]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprint(os.Stderr, fs.FlagUsages())
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Environment Variables:")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_WEBHOOK_URL        Teams incoming webhook URL")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_ON                 failure, completion or both (default: failure)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_CARD_FORMAT        adaptive or connector (default: adaptive)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_TIMEOUT            Webhook request timeout (default: 10s)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_DEBUG              Print instead of posting (true/false)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_QUIET              Disable notifications (true/false)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_ASYNC              Send from a worker pool (true/false)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_OUTPUT_TAIL_LINES  Output lines included on failure (default: 20)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_LOG_LEVEL          Log level (default: info)")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_LOG_FILE           Log to a rotated file instead of stderr")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_SENTRY_DSN         Also report failures to Sentry")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_METRICS_TEXTFILE   Write Prometheus metrics to this file")
	fmt.Fprintln(os.Stderr, "  TEAMS_NOTIFY_CONFIG             Path to config file")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Configuration file: ~/.config/teams-notify/config.yaml")
}
