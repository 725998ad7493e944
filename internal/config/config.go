// Package config loads and hot-reloads the daemon's TOML
// configuration file.
//
// Grounded on: kadirpekel-hector/pkg/config/provider/file.go (the
// watch-loop/debounce idiom, generalized from a raw-bytes watcher to
// decoding into a typed struct and diffing only the `[[workspace]]`
// array). Decoding itself uses github.com/BurntSushi/toml, carried
// over from the teacher's go.mod (an indirect dependency there,
// promoted to direct use here since this daemon's config format is a
// TOML file rather than the teacher's profile-registry flags).
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
)

// SlackConfig holds the default chat channel binding.
type SlackConfig struct {
	ChannelID string `toml:"channel_id"`
}

// TimeoutsConfig configures broker wait durations, in seconds.
type TimeoutsConfig struct {
	ApprovalSeconds int64 `toml:"approval_seconds"`
	PromptSeconds   int64 `toml:"prompt_seconds"`
	WaitSeconds     int64 `toml:"wait_seconds"`
}

// StallConfig configures the stall detector's timers.
type StallConfig struct {
	Enabled                    bool   `toml:"enabled"`
	InactivityThresholdSeconds int64  `toml:"inactivity_threshold_seconds"`
	EscalationThresholdSeconds int64  `toml:"escalation_threshold_seconds"`
	MaxRetries                 int    `toml:"max_retries"`
	DefaultNudgeMessage        string `toml:"default_nudge_message"`
}

// WorkspaceMapping binds a workspace to a chat channel. This is the
// only array that hot-reloads without a daemon restart.
type WorkspaceMapping struct {
	WorkspaceID string `toml:"workspace_id"`
	ChannelID   string `toml:"channel_id"`
}

// Config is the daemon's full configuration document.
type Config struct {
	DefaultWorkspaceRoot  string             `toml:"default_workspace_root"`
	HTTPPort              uint16             `toml:"http_port"`
	IPCName               string             `toml:"ipc_name"`
	MaxConcurrentSessions uint32             `toml:"max_concurrent_sessions"`
	HostCLI               string             `toml:"host_cli"`
	HostCLIArgs           []string           `toml:"host_cli_args"`
	// AgentProtocol selects the Agent Driver variant the daemon wires
	// for every session it spawns: "mcp" (default) or "acp". A
	// deployment's host_cli is one fixed agent integration, so this is
	// a process-wide setting rather than a per-session choice.
	AgentProtocol string `toml:"agent_protocol"`
	AuthorizedUserIDs     []string           `toml:"authorized_user_ids"`
	RetentionDays         uint32             `toml:"retention_days"`
	NATSURL               string             `toml:"nats_url"`
	Slack                 SlackConfig        `toml:"slack"`
	Timeouts              TimeoutsConfig     `toml:"timeouts"`
	Stall                 StallConfig        `toml:"stall"`
	Workspace             []WorkspaceMapping `toml:"workspace"`
}

// defaults applies the spec's documented defaults for any field the
// TOML document left at its zero value.
func defaults() Config {
	return Config{
		HTTPPort:              3000,
		RetentionDays:         30,
		MaxConcurrentSessions: 1,
		AgentProtocol:         "mcp",
		Timeouts: TimeoutsConfig{
			ApprovalSeconds: 3600,
			PromptSeconds:   1800,
			WaitSeconds:     0,
		},
		Stall: StallConfig{
			Enabled:                    true,
			InactivityThresholdSeconds: 300,
			EscalationThresholdSeconds: 120,
			MaxRetries:                 3,
		},
	}
}

// Load reads and decodes the TOML configuration file at path, filling
// in defaults for zero-valued fields the document omits.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, ierrors.WrapConfig(err, "failed to decode config file %q", path)
	}
	if cfg.DefaultWorkspaceRoot == "" {
		return nil, ierrors.Config("default_workspace_root is required")
	}
	if cfg.AgentProtocol == "" {
		cfg.AgentProtocol = "mcp"
	}
	if cfg.AgentProtocol != "mcp" && cfg.AgentProtocol != "acp" {
		return nil, ierrors.Config("agent_protocol must be %q or %q, got %q", "mcp", "acp", cfg.AgentProtocol)
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 3000
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	return &cfg, nil
}

// Watcher hot-reloads only the `[[workspace]]` array of a loaded
// Config, leaving every other field fixed for the process lifetime.
type Watcher struct {
	path   string
	logger *zap.Logger

	mu  sync.RWMutex
	cur *Config
}

// NewWatcher wraps an already-loaded Config for workspace-array
// hot-reload.
func NewWatcher(path string, initial *Config, logger *zap.Logger) *Watcher {
	return &Watcher{path: path, logger: logger, cur: initial}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cfg := *w.cur
	return &cfg
}

// Run watches the config file and reloads the `[[workspace]]` array
// on every debounced write, until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ierrors.WrapConfig(err, "failed to create config file watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	if err := watcher.Add(dir); err != nil {
		return ierrors.WrapConfig(err, "failed to watch config directory %q", dir)
	}

	const debounceDelay = 200 * time.Millisecond
	var timer *time.Timer

	reload := func() {
		reloaded := defaults()
		if _, err := toml.DecodeFile(w.path, &reloaded); err != nil {
			w.logger.Warn("config reload failed, keeping prior workspace mappings", zap.Error(err))
			return
		}
		w.mu.Lock()
		w.cur.Workspace = reloaded.Workspace
		w.mu.Unlock()
		w.logger.Info("reloaded workspace mappings", zap.Int("count", len(reloaded.Workspace)))
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Credentials holds operator-chat bot credentials, resolved at
// runtime and never persisted to the TOML config file.
type Credentials struct {
	SlackAppToken string
	SlackBotToken string
	IPCAuthToken  string
}

// LoadCredentials resolves Slack credentials from the OS keychain
// (when a keychain accessor is wired in by the caller) with an
// environment-variable fallback. This daemon ships with only the
// env-var path implemented; a keychain-backed accessor can be layered
// in without changing this function's contract.
//
// IPCAuthToken is read from AGENT_INTERCOM_IPC_AUTH_TOKEN and is
// optional: an empty value means the IPC dispatcher accepts every
// request without checking the shared secret (spec 4.11's "when a
// shared secret is configured on the server" qualifier).
func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		SlackAppToken: os.Getenv("SLACK_APP_TOKEN"),
		SlackBotToken: os.Getenv("SLACK_BOT_TOKEN"),
		IPCAuthToken:  os.Getenv("AGENT_INTERCOM_IPC_AUTH_TOKEN"),
	}
	if creds.SlackAppToken == "" || creds.SlackBotToken == "" {
		return creds, ierrors.Config("SLACK_APP_TOKEN and SLACK_BOT_TOKEN must both be set")
	}
	return creds, nil
}
