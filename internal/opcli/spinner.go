package opcli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Spinner frames for the animated spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner renders an animated status line during active turns.
type Spinner struct {
	out     io.Writer
	mu      sync.Mutex
	wg      sync.WaitGroup // tracks run() goroutine lifetime
	message string
	active  bool
	stopCh  chan struct{}
	frame   int
}

// NewSpinner creates a new spinner that writes to the given writer.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{
		out:    out,
		stopCh: make(chan struct{}),
	}
}

// Start begins the spinner animation with the given message.
func (sp *Spinner) Start(message string) {
	sp.mu.Lock()
	if sp.active {
		sp.mu.Unlock()
		sp.SetMessage(message)
		return
	}
	sp.active = true
	sp.message = message
	sp.stopCh = make(chan struct{})
	sp.wg.Add(1)
	sp.mu.Unlock()

	go sp.run()
}

// SetMessage updates the spinner message without stopping.
func (sp *Spinner) SetMessage(message string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.message = message
}

// Stop stops the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.mu.Lock()
	if !sp.active {
		sp.mu.Unlock()
		return
	}
	sp.active = false
	close(sp.stopCh)
	sp.mu.Unlock()

	sp.wg.Wait() // wait for run() goroutine to exit

	// Clear the spinner line
	fmt.Fprintf(sp.out, "\r\033[K")
}

func (sp *Spinner) run() {
	defer sp.wg.Done()
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sp.stopCh:
			return
		case <-ticker.C:
			sp.mu.Lock()
			msg := sp.message
			frame := spinnerFrames[sp.frame%len(spinnerFrames)]
			sp.frame++
			sp.mu.Unlock()

			fmt.Fprintf(sp.out, "\r\033[K%s %s", frame, msg)
		}
	}
}

// StatusMessage returns a human-friendly spinner message for a
// session's current status, connectivity, and last tool invoked.
func StatusMessage(status models.SessionStatus, connectivity models.ConnectivityStatus, lastTool *string) string {
	switch status {
	case models.SessionCreated:
		return "Starting agent..."
	case models.SessionActive:
		switch connectivity {
		case models.ConnectivityStalled:
			return "Agent stalled, nudging..."
		case models.ConnectivityOffline:
			return "Waiting for agent to reconnect..."
		default:
			if lastTool != nil && *lastTool != "" {
				return fmt.Sprintf("Running %s...", *lastTool)
			}
			return "Working..."
		}
	case models.SessionPaused:
		return "Paused, waiting for approval..."
	case models.SessionInterrupted:
		return "Interrupted, awaiting recovery..."
	default:
		return "Working..."
	}
}
