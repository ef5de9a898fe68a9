package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"creaverse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id"`
}

// gatedSendServer answers every send with the next status pushed to replies.
type gatedSendServer struct {
	replies chan int

	mu       sync.Mutex
	received []sendRequest
}

func newGatedSendServer(t *testing.T) (*gatedSendServer, *Client) {
	t.Helper()
	g := &gatedSendServer{replies: make(chan int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		g.received = append(g.received, req)
		g.mu.Unlock()

		status := <-g.replies
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
			return
		}
		clientID := req.ClientID
		_ = json.NewEncoder(w).Encode(models.Message{ID: 1, ConversationID: 7, Content: req.Content, ClientID: &clientID})
	}))
	t.Cleanup(srv.Close)

	session := NewSession()
	session.SignIn(&models.User{ID: 1, Username: "me"}, "token")
	return g, New(srv.URL, session)
}

func (g *gatedSendServer) requests() []sendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sendRequest(nil), g.received...)
}

func TestComposerClearsDraftSynchronously(t *testing.T) {
	g, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	composer.SetDraft("  hello there ")
	out, err := composer.Send(context.Background())
	require.NoError(t, err)

	// the server has not answered yet
	assert.Equal(t, "", composer.Draft())
	assert.Equal(t, Pending, out.State)
	assert.Equal(t, "hello there", out.Content)
	assert.NotEmpty(t, out.ClientID)
	require.Len(t, composer.Outbox(), 1)
	assert.Equal(t, Pending, composer.Outbox()[0].State)

	g.replies <- http.StatusCreated
	composer.Wait()

	box := composer.Outbox()
	require.Len(t, box, 1)
	assert.Equal(t, Confirmed, box[0].State)
	require.NotNil(t, box[0].Message)
	require.NotNil(t, box[0].Message.ClientID)
	assert.Equal(t, out.ClientID, *box[0].Message.ClientID)
}

func TestComposerRetryKeepsClientID(t *testing.T) {
	g, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	var mu sync.Mutex
	var states []SendState
	composer.OnChange(func(o Outgoing) {
		mu.Lock()
		states = append(states, o.State)
		mu.Unlock()
	})

	composer.SetDraft("first try")
	out, err := composer.Send(context.Background())
	require.NoError(t, err)

	// not failed yet
	assert.Error(t, composer.Retry(context.Background(), out.Seq))
	assert.Error(t, composer.Discard(out.Seq))

	g.replies <- http.StatusInternalServerError
	composer.Wait()
	failed := composer.Outbox()[0]
	assert.Equal(t, Failed, failed.State)
	assert.Error(t, failed.Err)

	require.NoError(t, composer.Retry(context.Background(), out.Seq))
	g.replies <- http.StatusCreated
	composer.Wait()

	box := composer.Outbox()
	require.Len(t, box, 1)
	assert.Equal(t, Confirmed, box[0].State)
	assert.Nil(t, box[0].Err)

	reqs := g.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, out.ClientID, reqs[0].ClientID)
	assert.Equal(t, reqs[0].ClientID, reqs[1].ClientID)

	mu.Lock()
	assert.Equal(t, []SendState{Failed, Pending, Confirmed}, states)
	mu.Unlock()
}

func TestComposerDiscardFailed(t *testing.T) {
	g, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	composer.SetDraft("doomed")
	out, err := composer.Send(context.Background())
	require.NoError(t, err)
	g.replies <- http.StatusInternalServerError
	composer.Wait()

	require.NoError(t, composer.Discard(out.Seq))
	assert.Empty(t, composer.Outbox())
	assert.ErrorIs(t, composer.Discard(out.Seq), ErrNotFound)
	assert.ErrorIs(t, composer.Retry(context.Background(), out.Seq), ErrNotFound)
}

func TestComposerRejectsEmptyDraft(t *testing.T) {
	_, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	composer.SetDraft("   \n\t")
	_, err := composer.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDraft)
	assert.Equal(t, "   \n\t", composer.Draft())
	assert.Empty(t, composer.Outbox())
}

func TestComposerOutboxKeepsSendOrder(t *testing.T) {
	g, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	for _, text := range []string{"one", "two", "three"} {
		composer.SetDraft(text)
		_, err := composer.Send(context.Background())
		require.NoError(t, err)
	}
	for range 3 {
		select {
		case g.replies <- http.StatusCreated:
		case <-time.After(5 * time.Second):
			t.Fatal("send never reached the server")
		}
	}
	composer.Wait()

	box := composer.Outbox()
	require.Len(t, box, 3)
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, uint64(i+1), box[i].Seq)
		assert.Equal(t, want, box[i].Content)
		assert.Equal(t, Confirmed, box[i].State)
	}
}

func TestComposerSurvivesCallerCancel(t *testing.T) {
	g, c := newGatedSendServer(t)
	composer := NewComposer(c, 7)

	ctx, cancel := context.WithCancel(context.Background())
	composer.SetDraft("leaving the screen")
	_, err := composer.Send(ctx)
	require.NoError(t, err)
	cancel()

	g.replies <- http.StatusCreated
	composer.Wait()
	assert.Equal(t, Confirmed, composer.Outbox()[0].State)
}

func TestSendStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "SendState(9)", SendState(9).String())
}
