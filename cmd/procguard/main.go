package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/srodi/procguard/pkg/alertlog"
	"github.com/srodi/procguard/pkg/collector/process"
	"github.com/srodi/procguard/pkg/config"
	"github.com/srodi/procguard/pkg/enforce"
	"github.com/srodi/procguard/pkg/monitor"
	"github.com/srodi/procguard/pkg/notify"
	"github.com/srodi/procguard/pkg/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "procguard: %v\n", err)
		return 2
	}

	level, _ := cfg.SlogLevel()
	closeLog := setupLogger(cfg.LogFile, level)
	defer closeLog()

	alerts, err := alertlog.Open(cfg.AlertLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "procguard: %v\n", err)
		return 1
	}
	defer alerts.Close()

	var sink alertlog.Sink = alerts
	if cfg.Telegram.Enabled() {
		minSeverity, _ := alertlog.ParseSeverity(cfg.Telegram.MinSeverity)
		if bot, err := notify.NewTelegram(cfg.Telegram.Token); err != nil {
			slog.Error("Telegram notifications disabled", "err", err)
		} else {
			notifier := notify.Tee(alerts, bot, cfg.Telegram.ChatID, notify.Options{
				MinSeverity: minSeverity,
				Cooldown:    cfg.Telegram.Cooldown,
			})
			defer func() {
				if err := notifier.Close(); err != nil {
					slog.Warn("Telegram notifications not fully delivered", "err", err)
				}
			}()
			sink = notifier
		}
	}

	policy := cfg.Policy()
	var enforcer monitor.Enforcer
	if cfg.AutoKill {
		enforcer = enforce.NewController(policy, sink, cfg.GraceTimeout)
	}

	screen := &ui.Screen{Out: os.Stdout, Banner: cfg.Banner, Color: ui.IsTerminal(os.Stdout)}
	m := monitor.New(monitor.Config{
		Interval: cfg.Interval,
		TopN:     cfg.TopN,
		AutoKill: cfg.AutoKill,
		Policy:   policy,
	}, process.NewSource(), sink, enforcer, screen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting procguard", "sort", policy.SortKey, "cpu_threshold", cfg.CPUThreshold,
		"mem_threshold", cfg.MemThreshold, "auto_kill", cfg.AutoKill, "alert_log", cfg.AlertLog)

	runErr := withSingleView(ui.EnableSingleView, func() error { return m.Run(ctx) })

	if runErr != nil {
		slog.Error("Monitor stopped", "err", runErr)
		fmt.Fprintf(os.Stderr, "procguard: %v\n", runErr)
		return 1
	}
	slog.Info("Shutting down")
	fmt.Println("procguard stopped")
	return 0
}

// withSingleView runs fn inside the full-screen view. The terminal is
// restored before withSingleView returns, including when fn panics.
func withSingleView(enter func() func(), fn func() error) error {
	restore := enter()
	defer restore()
	return fn()
}
