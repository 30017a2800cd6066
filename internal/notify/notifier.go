package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/talktivity/voicebridge/internal/config"
	"github.com/talktivity/voicebridge/internal/metrics"
)

// Session-state values the companion API understands.
const (
	StateSaving     = "saving_conversation"
	StateSaved      = "session_saved"
	StateSaveFailed = "session_save_failed"
)

type stateUpdate struct {
	UserID  int64  `json:"user_id"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// Notifier pushes session-state transitions to the companion API so the
// client UI can show save progress. Notifications are best-effort: a failed
// push is logged and counted but never blocks or fails the save itself.
type Notifier struct {
	apiURL string
	client *http.Client
}

func NewNotifier(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		apiURL: cfg.APIURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// SessionState sends one state transition for the user. The message is shown
// to the learner verbatim, so callers pick it per failure cause.
func (n *Notifier) SessionState(ctx context.Context, userID int64, state, message string) {
	if n.apiURL == "" {
		return
	}

	if err := n.post(ctx, stateUpdate{UserID: userID, State: state, Message: message}); err != nil {
		metrics.NotifyFailuresTotal.Inc()
		slog.Warn("notify: session state push failed",
			"user_id", userID, "state", state, "error", err)
		return
	}
	slog.Debug("notify: session state pushed", "user_id", userID, "state", state)
}

func (n *Notifier) post(ctx context.Context, update stateUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshaling state update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.apiURL+"/internal/session-state", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting state update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("session-state endpoint returned %d", resp.StatusCode)
	}
	return nil
}
