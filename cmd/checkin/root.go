package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/y0f/checkin/internal/assertion"
	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/notifier"
	"github.com/y0f/checkin/internal/preview"
	"github.com/y0f/checkin/internal/report"
	"github.com/y0f/checkin/internal/request"
	"github.com/y0f/checkin/internal/runner"
	"github.com/y0f/checkin/internal/transport"
)

var errUsage = errors.New("usage")

type options struct {
	configPath string
	dryRun     bool
}

func newRootCmd(code *int, stdout io.Writer) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "checkin",
		Short: "Send one HTTP check-in request and report whether it succeeded",
		Long: "checkin reads its settings from CHECKIN_* environment variables and an optional\n" +
			"YAML file, sends the configured request with retries, judges the response and\n" +
			"pushes the result to PushPlus and/or Bark when configured.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = run(cmd.Context(), opts, stdout)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $"+config.KeyConfigFile+")")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "load and validate the configuration without sending anything")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	return rootCmd
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := report.ExitSuccess
	root := newRootCmd(&code, stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return report.ExitConfig
	}
	return code
}

func run(ctx context.Context, opts options, stdout io.Writer) int {
	cfg, err := config.Load(config.LoadOptions{Path: opts.configPath})
	if err != nil {
		return report.New(setupLogger(config.Defaults().Logging, stdout), 0).ConfigFailure(err)
	}

	logger := setupLogger(cfg.Logging, stdout).With("run_id", uuid.NewString())
	reporter := report.New(logger, cfg.LogBytes)

	desc, err := request.Build(cfg)
	if err != nil {
		return reporter.ConfigFailure(err)
	}
	warmup, err := request.BuildWarmup(cfg)
	if err != nil {
		return reporter.ConfigFailure(err)
	}

	logStartup(logger, cfg, desc)

	tr := transport.Select(cfg.Transport, transport.Options{AllowPrivate: cfg.AllowPrivate}, logger)
	logger.Info("transport selected", "transport", tr.Name())

	if opts.dryRun {
		logger.Info("dry run, no request sent")
		return report.ExitSuccess
	}

	out := runner.New(tr, runner.OptionsFrom(cfg, warmup), logger).Run(ctx, desc)

	if !out.Interrupted() {
		client := notifier.NewClient(cfg.Notify.Retry, cfg.Notify.Timeout, logger)
		dispatcher := notifier.NewDispatcher(notifier.NewSinks(cfg.Notify, client), cfg.Notify.Timeout, logger)
		dispatcher.Notify(ctx, notifier.FromOutcome(cfg.Name, out, cfg.LogBytes))
	}

	return reporter.Report(out)
}

func logStartup(logger *slog.Logger, cfg *config.Config, d *request.Descriptor) {
	args := []any{
		"version", version,
		"name", cfg.Name,
		"method", d.Method,
		"url", d.URL,
		"timeout", cfg.Timeout,
		"retry", cfg.Retry,
		"retry_delay", cfg.RetryDelay,
		"verify_tls", cfg.VerifyTLS,
		"success", assertion.CriteriaFrom(cfg).Describe(),
		"log_bytes", cfg.LogBytes,
	}
	if names := d.Headers.Names(); len(names) > 0 {
		args = append(args, "headers", strings.Join(names, ","))
	}
	if cookie := d.Header("Cookie"); cookie != "" {
		args = append(args, "cookie", preview.Secret(cookie))
	}
	if cfg.Proxy.Enabled() {
		args = append(args, "proxy", redactProxy(cfg.Proxy))
	}
	if cfg.WarmupURL != "" {
		args = append(args, "warmup_url", cfg.WarmupURL)
	}
	if sinks := cfg.SinkNames(); len(sinks) > 0 {
		args = append(args, "notify", strings.Join(sinks, ","))
	}
	logger.Info("starting check-in", args...)
}

func redactProxy(p config.ProxyConfig) string {
	if p.All != "" {
		return redactURL(p.All)
	}
	var parts []string
	if p.HTTP != "" {
		parts = append(parts, "http="+redactURL(p.HTTP))
	}
	if p.HTTPS != "" {
		parts = append(parts, "https="+redactURL(p.HTTPS))
	}
	return strings.Join(parts, " ")
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
