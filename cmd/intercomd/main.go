// Command intercomd is the agent-intercom daemon: it owns the Request
// Broker, the Session Manager, the MCP tool server, the ACP stream
// orchestration for stream-based agents, the policy engine and its
// hot-reload watchers, the stall detector and its consumer,
// persistence, crash recovery, checkpointing, the local IPC
// dispatcher, the audit log, and the Slack chat adapter.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/audit"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/checkpoint"
	"github.com/softwaresalt/agent-intercom/internal/chat/slack"
	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/diff"
	"github.com/softwaresalt/agent-intercom/internal/driver"
	"github.com/softwaresalt/agent-intercom/internal/eventbus"
	"github.com/softwaresalt/agent-intercom/internal/ipc"
	"github.com/softwaresalt/agent-intercom/internal/logging"
	"github.com/softwaresalt/agent-intercom/internal/mcpserver"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
	"github.com/softwaresalt/agent-intercom/internal/persistence/pg"
	"github.com/softwaresalt/agent-intercom/internal/policy"
	"github.com/softwaresalt/agent-intercom/internal/recovery"
	"github.com/softwaresalt/agent-intercom/internal/session"
	"github.com/softwaresalt/agent-intercom/internal/stall"
	"github.com/softwaresalt/agent-intercom/internal/version"
)

// systemOwnerID marks a session spawned from a `[[workspace]]` config
// entry rather than a specific operator's chat command. It is always
// appended to the authorized-user allow-list so the Session Manager's
// authorization check, which has no "configuration triggered this"
// bypass, accepts these spawns.
const systemOwnerID = "system"

func main() {
	configPath := flag.String("config", "/etc/agent-intercom/intercom.toml", "path to the daemon's TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:      os.Getenv("AGENT_INTERCOM_LOG_LEVEL"),
		Format:     os.Getenv("AGENT_INTERCOM_LOG_FORMAT"),
		OutputPath: os.Getenv("AGENT_INTERCOM_LOG_OUTPUT"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting agent-intercom daemon", zap.String("version", version.GitCommit))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Fatal("daemon exited with error", zap.Error(err))
	}
	logger.Info("daemon shut down cleanly")
}

func run(ctx context.Context, cfg *config.Config, configPath string, logger *zap.Logger) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	store, err := openStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open persistence store: %w", err)
	}
	defer store.Close(context.Background())

	if err := store.ApplySchema(ctx); err != nil {
		return fmt.Errorf("failed to apply persistence schema: %w", err)
	}

	recoveryMgr := recovery.New(store, logger)
	candidates, err := recoveryMgr.Startup(ctx)
	if err != nil {
		return fmt.Errorf("crash recovery scan failed: %w", err)
	}
	for _, c := range candidates {
		logger.Warn("recovered interrupted session", zap.String("session_id", c.SessionID), zap.Int("pending_requests", len(c.PendingRequests)))
	}

	chatSvc := slack.New(cfg.Slack, creds, store, logger)
	chatSvc.Start(ctx)
	defer chatSvc.Stop()

	brk := broker.New(store, chatSvc, cfg.Timeouts, logger)
	defer brk.Shutdown()

	backendURL := fmt.Sprintf("http://127.0.0.1:%d/mcp/sse", cfg.HTTPPort)

	authorizedUserIDs := append([]string{systemOwnerID}, cfg.AuthorizedUserIDs...)
	sessionMgr := session.New(store, chatSvc, logger, cfg.HostCLI, cfg.HostCLIArgs, int(cfg.MaxConcurrentSessions), authorizedUserIDs)

	checkpointMgr := checkpoint.New(store)
	policyCache := policy.NewCache(logger)
	policyEval := policy.NewEvaluator(logger)
	patcher := diff.NewFilePatcher()

	auditDir := filepath.Join(cfg.DefaultWorkspaceRoot, ".intercom", "logs")
	auditLogger, err := audit.New(auditDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLogger.Close()

	bus, err := eventbus.New(cfg.NATSURL, logger)
	if err != nil {
		return fmt.Errorf("failed to construct event bus: %w", err)
	}
	defer bus.Close()

	stallRegistry := stall.NewRegistry()
	stallRaw := make(chan stall.Event, 256)
	stallConsumed := make(chan stall.Event, 256)
	go bridgeStallEvents(ctx, bus, stallRaw, stallConsumed, logger)

	var agentDriver driver.Driver
	var acpRegistry driver.ACPSessionRegistry
	switch cfg.AgentProtocol {
	case "acp":
		acpDrv := driver.NewACP(store, brk)
		agentDriver = acpDrv
		acpRegistry = acpDrv
		deps := acpDeps{
			store:    store,
			broker:   brk,
			driver:   agentDriver,
			registry: acpRegistry,
			stalls:   stallRegistry,
			logger:   logger,
		}
		sessionMgr.UseACP(newACPStreamHandler(ctx, deps))
		logger.Info("agent driver configured", zap.String("protocol", "acp"))
	default:
		agentDriver = driver.NewMCP(brk)
		logger.Info("agent driver configured", zap.String("protocol", "mcp"))
	}

	stallConsumer := stall.NewConsumer(store, chatSvc, acpPromptSender(agentDriver, cfg.AgentProtocol), logger)
	go stallConsumer.Run(ctx, stallConsumed)

	go sessionMgr.RunMonitor(ctx)

	watcher := config.NewWatcher(configPath, cfg, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("config watcher stopped", zap.Error(err))
		}
	}()
	go runWorkspaceSpawnLoop(ctx, watcher, sessionMgr, store, policyCache, checkpointMgr, stallRegistry, stallRaw, systemOwnerID, backendURL, logger)

	mcpDeps := mcpserver.Deps{
		Store:          store,
		Broker:         brk,
		Policy:         policyEval,
		PolicyCache:    policyCache,
		Patcher:        patcher,
		Recovery:       recoveryMgr,
		Audit:          auditLogger,
		Stalls:         stallRegistry,
		Chat:           chatSvc,
		DefaultChannel: cfg.Slack.ChannelID,
		Logger:         logger,
	}
	mcpSrv := mcpserver.New(mcpDeps)

	chatDispatcher := slack.NewDispatcher(store, brk, chatSvc, auditLogger, cfg.AuthorizedUserIDs, logger)
	socketClient := slack.NewSocketModeClient(chatSvc, chatDispatcher, logger)
	go socketClient.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	slack.RegisterRoutes(router, chatDispatcher, logger)
	router.Any("/mcp/sse", gin.WrapH(mcpserver.SSEHandler(mcpSrv)))

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: router}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()

	socketPath := filepath.Join(os.TempDir(), cfg.IPCName+".sock")
	dispatcher := &ipc.Dispatcher{
		Store:     store,
		Broker:    brk,
		Sessions:  sessionMgr,
		AuthToken: creds.IPCAuthToken,
		Logger:    logger,
	}
	ipcSrv := ipc.NewServer(socketPath, dispatcher, logger)
	if err := ipcSrv.Listen(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	go func() {
		if err := ipcSrv.Serve(ctx); err != nil {
			logger.Warn("IPC server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = ipcSrv.Close()
	_ = httpSrv.Shutdown(shutdownCtx)
	if err := recoveryMgr.Shutdown(shutdownCtx, "daemon shutdown"); err != nil {
		logger.Warn("shutdown recovery markdown failed", zap.Error(err))
	}
	return nil
}

// openStore selects the persistence backend: Postgres when
// AGENT_INTERCOM_DB_DSN is set, otherwise the in-memory store. The
// daemon's TOML config has no DSN field because a database connection
// string is a deployment secret, not a workspace-mapping setting — it
// belongs alongside the other env-sourced credentials in
// config.LoadCredentials's style rather than in the hot-reloadable
// config file.
func openStore(ctx context.Context, logger *zap.Logger) (persistence.Store, error) {
	dsn := os.Getenv("AGENT_INTERCOM_DB_DSN")
	if dsn == "" {
		logger.Info("no AGENT_INTERCOM_DB_DSN set, using in-memory persistence store")
		return memory.New(), nil
	}
	logger.Info("connecting to Postgres persistence store")
	return pg.Open(ctx, pg.Options{DSN: dsn})
}

// bridgeStallEvents republishes every stall.Event the detector fleet
// produces onto the shared event bus, then forwards it to the local
// Stall Event Consumer. The bus hop is what lets a future
// multi-instance deployment sharing one chat workspace (nats_url set)
// observe stall events raised by a sibling instance's detectors; a
// single-instance deployment (the default in-process bus) pays only an
// extra channel hop for that.
func bridgeStallEvents(ctx context.Context, bus eventbus.Bus, raw <-chan stall.Event, consumed chan<- stall.Event, logger *zap.Logger) {
	const subject = "stall.events"
	sub, err := bus.Subscribe(subject, func(_ context.Context, event eventbus.Event) {
		var e stall.Event
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			logger.Warn("failed to decode stall event from bus", zap.Error(err))
			return
		}
		select {
		case consumed <- e:
		case <-ctx.Done():
		}
	})
	if err != nil {
		logger.Error("failed to subscribe to stall event subject", zap.Error(err))
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-raw:
			if !ok {
				return
			}
			if err := bus.Publish(ctx, subject, e); err != nil {
				logger.Warn("failed to publish stall event", zap.Error(err))
			}
		}
	}
}

// acpPromptSender returns the driver as a stall.PromptSender when ACP
// is active, so the consumer can deliver auto-nudges in-band; MCP
// deployments pass nil, matching stall.NewConsumer's documented
// MCP-only mode.
func acpPromptSender(d driver.Driver, protocol string) stall.PromptSender {
	if protocol != "acp" {
		return nil
	}
	return d
}
