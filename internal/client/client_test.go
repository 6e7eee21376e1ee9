package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsm-intake/internal/middleware"
	"fsm-intake/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func emailList(ids ...string) map[string]interface{} {
	emails := make([]*model.Email, 0, len(ids))
	for _, id := range ids {
		emails = append(emails, &model.Email{ID: id, Status: model.StatusJunk})
	}
	return map[string]interface{}{"emails": emails}
}

func ids(emails []*model.Email) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, e.ID)
	}
	return out
}

func TestClientListGetClear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.Header.Get(middleware.SessionHeader))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/get-emails":
			writeJSON(w, http.StatusOK, emailList("b", "a"))
		case r.Method == http.MethodGet && r.URL.Path == "/api/get-emails/a":
			writeJSON(w, http.StatusOK, &model.Email{ID: "a"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/get-emails/zzz":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Email not found"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/emails/clear":
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "cleared": 3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(server.URL+"/", "s1")
	ctx := context.Background()

	emails, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(emails))

	email, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", email.ID)

	_, err = c.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClientDeleteNotFoundIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "a" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": "a"})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Email not found"})
	}))
	defer server.Close()

	c := New(server.URL, "")

	res, err := c.Delete(context.Background(), "zzz")
	require.NoError(t, err)
	assert.True(t, res.NotFound)
	assert.False(t, res.Deleted)

	res, err = c.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
}

func TestClientTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get emails"})
	}))
	c := New(server.URL, "")

	_, err := c.List(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.True(t, te.Retryable())
	assert.Contains(t, te.Error(), "Failed to get emails")

	server.Close()
	_, err = c.List(context.Background())
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
	assert.True(t, te.Retryable())

	assert.False(t, (&TransportError{Status: http.StatusBadRequest, Err: errors.New("bad")}).Retryable())
}

func TestInboxDeleteCompletesBeforeRefresh(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	deleted := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method)
		defer mu.Unlock()

		if r.Method == http.MethodDelete {
			deleted = true
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
		if deleted {
			writeJSON(w, http.StatusOK, emailList("b"))
			return
		}
		writeJSON(w, http.StatusOK, emailList("a", "b"))
	}))
	defer server.Close()

	inbox := NewInbox(New(server.URL, ""))
	ctx := context.Background()

	_, err := inbox.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(inbox.Emails()))

	res, emails, err := inbox.DeleteAndRefresh(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, []string{"b"}, ids(emails))
	assert.Equal(t, []string{http.MethodGet, http.MethodDelete, http.MethodGet}, calls)
}

func TestInboxDiscardsStaleRefresh(t *testing.T) {
	var listCalls int32
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
			return
		}
		if atomic.AddInt32(&listCalls, 1) == 1 {
			close(firstStarted)
			<-releaseFirst
			writeJSON(w, http.StatusOK, emailList("a", "b"))
			return
		}
		writeJSON(w, http.StatusOK, emailList("b"))
	}))
	defer server.Close()

	inbox := NewInbox(New(server.URL, ""))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := inbox.Refresh(ctx)
		done <- err
	}()
	<-firstStarted

	_, emails, err := inbox.DeleteAndRefresh(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(emails))

	close(releaseFirst)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"b"}, ids(inbox.Emails()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&listCalls))
}

func TestInboxConcurrentRefreshesShareRequest(t *testing.T) {
	var listCalls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&listCalls, 1)
		<-release
		writeJSON(w, http.StatusOK, emailList("a"))
	}))
	defer server.Close()

	inbox := NewInbox(New(server.URL, ""))
	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inbox.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}

	// Wait for the shared request to reach the server before releasing it
	require.Eventually(t, func() bool { return atomic.LoadInt32(&listCalls) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&listCalls))
	assert.Equal(t, []string{"a"}, ids(inbox.Emails()))
}

func TestInboxClearAndRefresh(t *testing.T) {
	cleared := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			cleared = true
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "cleared": 3})
			return
		}
		if cleared {
			writeJSON(w, http.StatusOK, emailList())
			return
		}
		writeJSON(w, http.StatusOK, emailList("a", "b", "c"))
	}))
	defer server.Close()

	inbox := NewInbox(New(server.URL, ""))
	_, err := inbox.Refresh(context.Background())
	require.NoError(t, err)

	n, emails, err := inbox.ClearAndRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, emails)
}
