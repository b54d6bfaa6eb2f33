package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	mu       sync.Mutex
	history  []map[string]string
	posts    []url.Values
	postFail bool
}

func (f *fakeSlack) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "messages": f.history})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.postFail {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
			return
		}
		f.posts = append(f.posts, r.PostForm)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "222.333"})
	})
	return mux
}

func newTestService(t *testing.T, f *fakeSlack) *Service {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewServiceWithClient(NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/"), "https://dash.example.com")
}

func TestService_NilReceiver(t *testing.T) {
	var s *Service
	assert.NoError(t, s.NotifyEscalation(context.Background(), EscalationInput{SessionID: "sess-1"}))
	assert.NoError(t, s.NotifyLead(context.Background(), LeadInput{SessionID: "sess-1"}))
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "", Channel: "C123"}))
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "xoxb-test", Channel: ""}))
	})

	t.Run("returns service when configured", func(t *testing.T) {
		assert.NotNil(t, NewService(ServiceConfig{Token: "xoxb-test", Channel: "C123"}))
	})
}

func TestNotifyEscalation(t *testing.T) {
	input := EscalationInput{
		SessionID:      "sess-1",
		ConversationID: "conv-1",
		TicketNumber:   "TKT-20260101120000-AB12",
		Reason:         "user_request",
		Urgency:        "low",
		Language:       "nl",
		Transcript:     "user: ik wil een medewerker\n",
	}

	t.Run("new thread", func(t *testing.T) {
		f := &fakeSlack{}
		require.NoError(t, newTestService(t, f).NotifyEscalation(context.Background(), input))

		require.Len(t, f.posts, 1)
		assert.Empty(t, f.posts[0].Get("thread_ts"))
		assert.Contains(t, f.posts[0].Get("text"), "session sess-1")
		assert.Contains(t, f.posts[0].Get("blocks"), "TKT-20260101120000-AB12")
	})

	t.Run("threads onto earlier session message", func(t *testing.T) {
		f := &fakeSlack{history: []map[string]string{
			{"type": "message", "text": "New lead from Jan for Session  SESS-1", "ts": "111.000"},
		}}
		require.NoError(t, newTestService(t, f).NotifyEscalation(context.Background(), input))

		require.Len(t, f.posts, 1)
		assert.Equal(t, "111.000", f.posts[0].Get("thread_ts"))
	})

	t.Run("follow-up threads onto the message this service posted", func(t *testing.T) {
		f := &fakeSlack{}
		svc := newTestService(t, f)
		require.NoError(t, svc.NotifyLead(context.Background(), LeadInput{SessionID: "sess-1", Name: "Jan"}))
		require.NoError(t, svc.NotifyEscalation(context.Background(), input))

		require.Len(t, f.posts, 2)
		assert.Empty(t, f.posts[0].Get("thread_ts"))
		assert.Equal(t, "222.333", f.posts[1].Get("thread_ts"))
	})

	t.Run("replies in history are not thread roots", func(t *testing.T) {
		f := &fakeSlack{history: []map[string]string{
			{"type": "message", "text": "update for session sess-1", "ts": "112.000", "thread_ts": "100.000"},
		}}
		require.NoError(t, newTestService(t, f).NotifyEscalation(context.Background(), input))

		require.Len(t, f.posts, 1)
		assert.Empty(t, f.posts[0].Get("thread_ts"))
	})

	t.Run("post failure is returned", func(t *testing.T) {
		f := &fakeSlack{postFail: true}
		assert.Error(t, newTestService(t, f).NotifyEscalation(context.Background(), input))
	})
}

func TestNotifyLead(t *testing.T) {
	f := &fakeSlack{}
	err := newTestService(t, f).NotifyLead(context.Background(), LeadInput{SessionID: "s", Name: "Jan", Email: "jan@example.com", Language: "nl"})
	require.NoError(t, err)
	require.Len(t, f.posts, 1)
	assert.Contains(t, f.posts[0].Get("blocks"), "jan@example.com")
}
