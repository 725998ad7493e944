package stall

import "sync"

// Registry tracks the running Handle for each active session so that
// other components (notably the MCP tool handlers for heartbeat and
// set_operational_mode) can reset or pause/resume a session's stall
// timer without holding a reference to the Handle themselves.
//
// Grounded on: original_source/src/mcp/tools/heartbeat.rs's
// `state.stall_detectors: Option<Mutex<HashMap<session_id, Handle>>>`
// lookup-and-reset pattern.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Add registers h under its session id, replacing any prior handle for
// the same session.
func (r *Registry) Add(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.SessionID()] = h
}

// Remove drops the handle for sessionID, if any.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, sessionID)
}

// Reset resets the stall timer for sessionID. It is a no-op if no
// detector is registered for that session.
func (r *Registry) Reset(sessionID string) {
	r.mu.Lock()
	h := r.handles[sessionID]
	r.mu.Unlock()
	if h != nil {
		h.Reset()
	}
}

// Pause pauses the stall timer for sessionID. It is a no-op if no
// detector is registered for that session.
func (r *Registry) Pause(sessionID string) {
	r.mu.Lock()
	h := r.handles[sessionID]
	r.mu.Unlock()
	if h != nil {
		h.Pause()
	}
}

// Resume resumes the stall timer for sessionID. It is a no-op if no
// detector is registered for that session.
func (r *Registry) Resume(sessionID string) {
	r.mu.Lock()
	h := r.handles[sessionID]
	r.mu.Unlock()
	if h != nil {
		h.Resume()
	}
}

// Get returns the handle registered for sessionID, or nil if absent.
func (r *Registry) Get(sessionID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[sessionID]
}
