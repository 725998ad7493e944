// Package session implements the Session Manager (spec 4.4): spawning
// the host CLI as a supervised child process, the child-exit monitor,
// and the pause/resume/terminate lifecycle operations with their
// ownership check.
//
// Grounded on: original_source/src/orchestrator/{spawner,
// session_manager, child_monitor}.rs for the spawn/terminate/ownership
// contract, and mfateev-temporal-agent-harness's
// internal/execsession/session.go for the Go idiom of wrapping an
// os/exec.Cmd with a background goroutine that owns Wait() and
// publishes exit state for a poller to observe.
package session

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// pollInterval is the child-monitor cadence (spec 4.4: "~5 s").
const pollInterval = 5 * time.Second

// terminateGrace is how long Terminate waits for voluntary exit before
// force-killing the child.
const terminateGrace = 5 * time.Second

const (
	envWorkspaceRoot = "AGENT_INTERCOM_WORKSPACE_ROOT"
	envBackendURL    = "AGENT_INTERCOM_BACKEND_URL"
	envSessionID     = "AGENT_INTERCOM_SESSION_ID"
)

// ExitNotifier receives a best-effort notification when a spawned
// agent process exits without an operator-initiated terminate.
type ExitNotifier interface {
	NotifySessionExited(ctx context.Context, session *models.Session, statusText string) error
}

// ACPStreamHandler receives a freshly spawned child's raw stdio pipes
// when the manager is configured via UseACP, so the caller can attach
// an acp.Reader/acp.Writer pair to them instead of the default
// stdout/stderr drain. internal/session does not import internal/acp
// itself (accept interfaces): the handler is the daemon's glue code.
type ACPStreamHandler func(sessionID string, stdout io.ReadCloser, stdin io.WriteCloser)

// NoopExitNotifier discards every notification.
type NoopExitNotifier struct{}

func (NoopExitNotifier) NotifySessionExited(context.Context, *models.Session, string) error {
	return nil
}

// trackedChild pairs a running child process with the state its
// waiter goroutine publishes once the process exits.
type trackedChild struct {
	cmd *exec.Cmd

	mu         sync.Mutex
	exited     bool
	statusText string
}

// Manager owns every live child process and mediates the Session
// lifecycle state machine through the session repository.
type Manager struct {
	store    persistence.Store
	notifier ExitNotifier
	logger   *zap.Logger

	hostCLI           string
	hostCLIArgs       []string
	maxConcurrent     int
	authorizedUserIDs map[string]struct{}

	protocol   models.ProtocolMode
	acpHandler ACPStreamHandler

	mu       sync.Mutex
	children map[string]*trackedChild
}

// New builds a Session Manager. authorizedUserIDs must be non-empty;
// an empty operator allow-list is a configuration error the caller
// should have rejected at startup (spec 4.4 does not describe an
// "allow everyone" mode).
func New(store persistence.Store, notifier ExitNotifier, logger *zap.Logger, hostCLI string, hostCLIArgs []string, maxConcurrent int, authorizedUserIDs []string) *Manager {
	allow := make(map[string]struct{}, len(authorizedUserIDs))
	for _, id := range authorizedUserIDs {
		allow[id] = struct{}{}
	}
	return &Manager{
		store:             store,
		notifier:          notifier,
		logger:            logger,
		hostCLI:           hostCLI,
		hostCLIArgs:       hostCLIArgs,
		maxConcurrent:     maxConcurrent,
		authorizedUserIDs: allow,
		children:          make(map[string]*trackedChild),
	}
}

// UseACP configures the manager to mark every session it spawns as
// ACP-protocol and to hand each child's stdio pipes to handler instead
// of draining them, so the daemon can attach an acp.Reader/acp.Writer
// pair. A manager with no UseACP call spawns plain MCP sessions,
// matching the original zero-value behavior.
func (m *Manager) UseACP(handler ACPStreamHandler) {
	m.protocol = models.ProtocolACP
	m.acpHandler = handler
}

// Spawn verifies the requester is authorized and the concurrent-active
// limit is not exceeded, creates a Created session, spawns the host
// CLI with the session's workspace root as its working directory and
// the session id / backend URL / workspace root exported as
// environment variables, then transitions the session to Active.
func (m *Manager) Spawn(ctx context.Context, ownerUserID, workspaceRoot string, prompt *string, mode models.SessionMode, backendURL string) (*models.Session, error) {
	if err := m.ensureAuthorized(ownerUserID); err != nil {
		return nil, err
	}

	active, err := m.store.Sessions().CountActive(ctx)
	if err != nil {
		return nil, err
	}
	if active >= m.maxConcurrent {
		return nil, ierrors.Config("concurrent session limit reached (%d/%d)", active, m.maxConcurrent)
	}

	sess := models.NewSession(ownerUserID, workspaceRoot, prompt, mode)
	if m.protocol == models.ProtocolACP {
		sess.ProtocolMode = models.ProtocolACP
	}
	if err := m.store.Sessions().Create(ctx, sess); err != nil {
		return nil, err
	}

	cmd := exec.Command(m.hostCLI, m.hostCLIArgs...)
	cmd.Dir = workspaceRoot
	env := os.Environ()
	env = append(env,
		envWorkspaceRoot+"="+workspaceRoot,
		envBackendURL+"="+backendURL,
		envSessionID+"="+sess.ID,
	)
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ierrors.WrapProtocol(err, "failed to attach stdout pipe for session %s", sess.ID)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, ierrors.WrapProtocol(err, "failed to attach stderr pipe for session %s", sess.ID)
	}

	var stdin io.WriteCloser
	if sess.ProtocolMode == models.ProtocolACP {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, ierrors.WrapProtocol(err, "failed to attach stdin pipe for session %s", sess.ID)
		}
	} else {
		cmd.Stdin = nil
	}

	if err := cmd.Start(); err != nil {
		return nil, ierrors.WrapProtocol(err, "failed to spawn host cli for session %s", sess.ID)
	}

	tc := &trackedChild{cmd: cmd}
	m.mu.Lock()
	m.children[sess.ID] = tc
	m.mu.Unlock()

	if sess.ProtocolMode == models.ProtocolACP && m.acpHandler != nil {
		m.acpHandler(sess.ID, stdout, stdin)
	} else {
		go drain(stdout)
	}
	go drain(stderr)
	go m.waitForExit(sess.ID, tc)

	if err := m.store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive); err != nil {
		return nil, err
	}
	sess.Status = models.SessionActive

	m.logger.Info("agent process spawned",
		zap.String("session_id", sess.ID),
		zap.String("host_cli", m.hostCLI),
		zap.String("workspace_root", workspaceRoot),
	)
	return sess, nil
}

// drain discards a pipe's output; the daemon does not interpret agent
// stdout/stderr (spec Non-goals: no semantic interpretation of agent
// output).
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

// waitForExit blocks on the child's exit and publishes the result for
// the monitor loop to observe. It never itself mutates session state,
// so Terminate (which also waits on the same process) and the monitor
// loop never race over who transitions the session.
func (m *Manager) waitForExit(sessionID string, tc *trackedChild) {
	err := tc.cmd.Wait()

	statusText := "exited normally (code 0)"
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			statusText = exitCodeText(exitErr.ExitCode())
		} else {
			statusText = "status unknown"
		}
	}

	tc.mu.Lock()
	tc.exited = true
	tc.statusText = statusText
	tc.mu.Unlock()
}

func exitCodeText(code int) string {
	if code == 0 {
		return "exited normally (code 0)"
	}
	if code < 0 {
		return "terminated by signal"
	}
	return "exited with code " + strconv.Itoa(code)
}

// RunMonitor polls all tracked children at pollInterval until ctx is
// canceled. Any child found exited is removed from the registry, its
// session is marked Terminated, and the operator is notified with the
// exit status.
func (m *Manager) RunMonitor(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollChildren(ctx)
		}
	}
}

func (m *Manager) pollChildren(ctx context.Context) {
	type exited struct {
		sessionID  string
		statusText string
	}
	var done []exited

	m.mu.Lock()
	for sessionID, tc := range m.children {
		tc.mu.Lock()
		if tc.exited {
			done = append(done, exited{sessionID: sessionID, statusText: tc.statusText})
		}
		tc.mu.Unlock()
	}
	for _, d := range done {
		delete(m.children, d.sessionID)
	}
	m.mu.Unlock()

	for _, d := range done {
		if err := m.store.Sessions().UpdateStatus(ctx, d.sessionID, models.SessionTerminated); err != nil {
			m.logger.Warn("failed to terminate session after child exit",
				zap.String("session_id", d.sessionID), zap.Error(err))
			continue
		}
		m.logger.Info("spawned agent process exited",
			zap.String("session_id", d.sessionID), zap.String("status", d.statusText))

		sess, err := m.store.Sessions().GetByID(ctx, d.sessionID)
		if err != nil {
			continue
		}
		if err := m.notifier.NotifySessionExited(ctx, sess, d.statusText); err != nil {
			m.logger.Warn("failed to notify operator of session exit",
				zap.String("session_id", d.sessionID), zap.Error(err))
		}
	}
}

// Pause transitions an Active session to Paused.
func (m *Manager) Pause(ctx context.Context, sessionID, actingUserID string) (*models.Session, error) {
	sess, err := m.authorizeOperation(ctx, sessionID, actingUserID)
	if err != nil {
		return nil, err
	}
	if err := m.store.Sessions().UpdateStatus(ctx, sessionID, models.SessionPaused); err != nil {
		return nil, err
	}
	sess.Status = models.SessionPaused
	m.logger.Info("session paused", zap.String("session_id", sessionID))
	return sess, nil
}

// Resume transitions a Paused session back to Active.
func (m *Manager) Resume(ctx context.Context, sessionID, actingUserID string) (*models.Session, error) {
	sess, err := m.authorizeOperation(ctx, sessionID, actingUserID)
	if err != nil {
		return nil, err
	}
	if err := m.store.Sessions().UpdateStatus(ctx, sessionID, models.SessionActive); err != nil {
		return nil, err
	}
	sess.Status = models.SessionActive
	m.logger.Info("session resumed", zap.String("session_id", sessionID))
	return sess, nil
}

// Terminate sends the child a termination signal, waits terminateGrace
// for voluntary exit, then force-kills, and marks the session
// Terminated regardless of how the child exited.
func (m *Manager) Terminate(ctx context.Context, sessionID, actingUserID string) (*models.Session, error) {
	sess, err := m.authorizeOperation(ctx, sessionID, actingUserID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	tc, ok := m.children[sessionID]
	delete(m.children, sessionID)
	m.mu.Unlock()

	if ok {
		m.logger.Info("sending termination signal to child process", zap.String("session_id", sessionID))
		if tc.cmd.Process != nil {
			_ = tc.cmd.Process.Signal(os.Interrupt)
		}

		exited := make(chan struct{})
		go func() {
			for {
				tc.mu.Lock()
				done := tc.exited
				tc.mu.Unlock()
				if done {
					close(exited)
					return
				}
				time.Sleep(50 * time.Millisecond)
			}
		}()

		select {
		case <-exited:
			m.logger.Info("child process exited gracefully", zap.String("session_id", sessionID))
		case <-time.After(terminateGrace):
			m.logger.Warn("child process did not exit within grace period, forcing kill",
				zap.String("session_id", sessionID))
			if tc.cmd.Process != nil {
				_ = tc.cmd.Process.Kill()
			}
		}
	}

	if err := m.store.Sessions().UpdateStatus(ctx, sessionID, models.SessionTerminated); err != nil {
		return nil, err
	}
	sess.Status = models.SessionTerminated
	m.logger.Info("session terminated", zap.String("session_id", sessionID))
	return sess, nil
}

// authorizeOperation loads the session and enforces the ownership
// check: the acting user must equal owner_user_id unless the session
// has no owner (a direct, unauthenticated connection), which bypasses
// the check entirely.
func (m *Manager) authorizeOperation(ctx context.Context, sessionID, actingUserID string) (*models.Session, error) {
	sess, err := m.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerUserID != "" && sess.OwnerUserID != actingUserID {
		return nil, ierrors.Unauthorized("session belongs to a different operator")
	}
	return sess, nil
}

func (m *Manager) ensureAuthorized(userID string) error {
	if _, ok := m.authorizedUserIDs[userID]; ok {
		return nil
	}
	return ierrors.Unauthorized("user is not authorized")
}
