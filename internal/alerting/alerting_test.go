package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/core"
)

func TestNotifyPostsEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, nil)
	n.Observer()(core.UpstreamServer{Name: "google", Address: "8.8.8.8:53"}, false)

	select {
	case ev := <-received:
		assert.Equal(t, "google", ev.ServerName)
		assert.False(t, ev.Healthy)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestNotifyDisabledWhenNoURL(t *testing.T) {
	n := New("", nil)
	// Must not panic or block.
	n.Notify(context.Background(), core.UpstreamServer{Name: "x"}, true)
}
