// Package config builds the run configuration from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/procguard/pkg/alertlog"
	"github.com/srodi/procguard/pkg/types"
)

const (
	defaultInterval     = 3 * time.Second
	defaultGraceTimeout = 3 * time.Second
	defaultThreshold    = 80.0
	defaultCooldown     = 10 * time.Minute
)

// DefaultProtected are never terminated unless a config file replaces the list.
var DefaultProtected = []string{"systemd", "init", "launchd", "kthreadd", "sshd"}

// selfName allows tests to stub the executable lookup.
var selfName = func() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Base(exe)
}

// TelegramConfig enables forwarding of alert log entries to a chat.
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	ChatID      int64         `yaml:"chat_id"`
	MinSeverity string        `yaml:"min_severity"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Enabled reports whether both a token and a chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// Config is fixed for the lifetime of one run.
type Config struct {
	Sort         string         `yaml:"sort"`
	Interval     time.Duration  `yaml:"interval"`
	TopN         int            `yaml:"top_n"`
	CPUThreshold float64        `yaml:"cpu_threshold"`
	MemThreshold float64        `yaml:"mem_threshold"`
	Protected    []string       `yaml:"protected"`
	AutoKill     bool           `yaml:"auto_kill"`
	GraceTimeout time.Duration  `yaml:"grace_timeout"`
	AlertLog     string         `yaml:"alert_log"`
	LogFile      string         `yaml:"log_file"`
	LogLevel     string         `yaml:"log_level"`
	Banner       bool           `yaml:"banner"`
	Telegram     TelegramConfig `yaml:"telegram"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Sort:         "cpu",
		Interval:     defaultInterval,
		TopN:         types.DefaultTopN,
		CPUThreshold: defaultThreshold,
		MemThreshold: defaultThreshold,
		Protected:    append([]string(nil), DefaultProtected...),
		GraceTimeout: defaultGraceTimeout,
		AlertLog:     "procguard_alerts.log",
		LogFile:      "procguard.log",
		LogLevel:     "info",
		Banner:       true,
		Telegram:     TelegramConfig{MinSeverity: "warning", Cooldown: defaultCooldown},
	}
}

// Parse reads flags from args, layering an optional -config YAML file between
// the defaults and any flag the user set explicitly. The running executable's
// own name is always added to the protected list.
func Parse(args []string, output io.Writer) (Config, error) {
	def := Default()
	fs := flag.NewFlagSet("procguard", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	path := fs.String("config", "", "path to a YAML config file")
	sortKey := fs.String("sort", def.Sort, "rank processes by cpu or mem")
	interval := fs.Duration("interval", def.Interval, "sampling interval (e.g. 3s, 1m)")
	topN := fs.Int("topn", def.TopN, "number of processes to display")
	cpuThreshold := fs.Float64("cpu-threshold", def.CPUThreshold, "alert when a process uses more CPU percent than this")
	memThreshold := fs.Float64("mem-threshold", def.MemThreshold, "alert when a process uses more memory percent than this")
	protect := fs.String("protect", "", "comma separated process names never to terminate (added to the list)")
	autoKill := fs.Bool("auto-kill", def.AutoKill, "terminate processes that exceed a threshold")
	grace := fs.Duration("grace-timeout", def.GraceTimeout, "wait after SIGTERM before sending SIGKILL")
	alertLog := fs.String("alert-log", def.AlertLog, "append-only alert log path")
	logFile := fs.String("log-file", def.LogFile, "diagnostics log path (empty for stderr)")
	logLevel := fs.String("log-level", def.LogLevel, "diagnostics level: debug, info, warn, error")
	banner := fs.Bool("banner", def.Banner, "show the banner above the table")
	tgToken := fs.String("telegram-token", "", "Telegram bot token for notifications")
	tgChat := fs.Int64("telegram-chat", 0, "Telegram chat ID for notifications")
	tgCooldown := fs.Duration("telegram-cooldown", def.Telegram.Cooldown, "quiet period before a repeated alert is sent to Telegram again (0 sends every repeat)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	if *path != "" {
		loaded, err := Load(*path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sort":
			cfg.Sort = *sortKey
		case "interval":
			cfg.Interval = *interval
		case "topn":
			cfg.TopN = *topN
		case "cpu-threshold":
			cfg.CPUThreshold = *cpuThreshold
		case "mem-threshold":
			cfg.MemThreshold = *memThreshold
		case "protect":
			cfg.Protected = append(cfg.Protected, strings.Split(*protect, ",")...)
		case "auto-kill":
			cfg.AutoKill = *autoKill
		case "grace-timeout":
			cfg.GraceTimeout = *grace
		case "alert-log":
			cfg.AlertLog = *alertLog
		case "log-file":
			cfg.LogFile = *logFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "banner":
			cfg.Banner = *banner
		case "telegram-token":
			cfg.Telegram.Token = *tgToken
		case "telegram-chat":
			cfg.Telegram.ChatID = *tgChat
		case "telegram-cooldown":
			cfg.Telegram.Cooldown = *tgCooldown
		}
	})

	if name := selfName(); name != "" {
		cfg.Protected = append(cfg.Protected, name)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load decodes a YAML file on top of the defaults. Keys absent from the file
// keep their default values; a protected list in the file replaces the default one.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the monitor cannot run with.
func (c Config) Validate() error {
	if _, err := types.ParseSortKey(c.Sort); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errors.New("interval must be > 0")
	}
	if c.TopN <= 0 {
		return errors.New("top_n must be > 0")
	}
	if c.CPUThreshold <= 0 {
		return errors.New("cpu_threshold must be > 0")
	}
	if c.MemThreshold <= 0 || c.MemThreshold > 100 {
		return errors.New("mem_threshold must be within (0, 100]")
	}
	if c.GraceTimeout <= 0 {
		return errors.New("grace_timeout must be > 0")
	}
	if strings.TrimSpace(c.AlertLog) == "" {
		return errors.New("alert_log is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == 0) {
		return errors.New("telegram token and chat_id must be set together")
	}
	if _, err := alertlog.ParseSeverity(c.Telegram.MinSeverity); err != nil {
		return fmt.Errorf("telegram.min_severity: %w", err)
	}
	if c.Telegram.Cooldown < 0 {
		return errors.New("telegram.cooldown must be >= 0")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Policy builds the immutable policy handed to the monitor components.
// It assumes Validate has passed.
func (c Config) Policy() types.PolicyConfig {
	key, _ := types.ParseSortKey(c.Sort)
	return types.PolicyConfig{
		CPUThresholdPercent: c.CPUThreshold,
		MemThresholdPercent: c.MemThreshold,
		ProtectedNames:      types.NewProtectedSet(c.Protected...),
		SortKey:             key,
	}
}
