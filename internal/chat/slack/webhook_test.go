package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func newTestRouter(t *testing.T, d *Dispatcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, d, zap.NewNop())
	return r
}

func TestWebhook_InteractionsRoutesBlockAction(t *testing.T) {
	ctx := context.Background()
	d, store, b := newTestDispatcher(t, nil)
	r := newTestRouter(t, d)

	approval := models.NewApprovalRequest("sess1", "Add helper", nil, "diff", "main.go", models.RiskLow, "hash1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	resultCh := make(chan *struct{}, 1)
	go func() {
		_, _ = b.RequestApproval(ctx, approval)
		resultCh <- &struct{}{}
	}()

	payload := `{"type":"block_actions","user":{"id":"U1"},"channel":{"id":"C1"},` +
		`"message":{"ts":"1.1"},"actions":[{"action_id":"approve_accept","value":"` + approval.ID + `"}]}`

	form := url.Values{"payload": {payload}}
	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	<-resultCh

	got, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Status)
}

func TestWebhook_InteractionsRejectsMissingPayload(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nil)
	r := newTestRouter(t, d)

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_CommandsQueuesTaskInboxItem(t *testing.T) {
	ctx := context.Background()
	d, store, _ := newTestDispatcher(t, nil)
	r := newTestRouter(t, d)

	form := url.Values{
		"command":    {"/intercom-task"},
		"text":       {"fix the build"},
		"user_id":    {"U1"},
		"channel_id": {"C1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	items, err := store.Inbox().GetUnconsumed(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fix the build", items[0].Text)
}

func TestWebhook_CommandsRejectsMissingCommand(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nil)
	r := newTestRouter(t, d)

	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
