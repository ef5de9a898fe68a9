package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"creaverse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthenticated},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"conflict", http.StatusConflict, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := New(srv.URL, nil).Profile(context.Background(), "anyone")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}

	plain := &APIError{Status: http.StatusInternalServerError}
	assert.False(t, errors.Is(plain, ErrNotFound))
	assert.False(t, errors.Is(plain, ErrUnauthenticated))
}

func TestRequireSessionSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.Conversations(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = c.SendMessage(context.Background(), 1, "hi", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, c.SetPresence(context.Background(), true), ErrUnauthenticated)
	assert.Equal(t, int32(0), hits.Load())
}

func TestBearerTokenIsSent(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"user":null}`))
	}))
	defer srv.Close()

	session := NewSession()
	session.SignIn(nil, "abc")
	c := New(srv.URL+"/", session, WithTimeout(time.Second))
	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, "Bearer abc", <-got)
}

func TestLoginSignsSessionIn(t *testing.T) {
	srv := newAPI(t, nil)
	ctx := context.Background()
	c := New(srv.URL, nil)

	var events int
	c.Session().Subscribe(func(_ *models.User) { events++ })

	_, err := c.Register(ctx, "maker", "password123", "Maker")
	require.NoError(t, err)
	_, err = c.Register(ctx, "maker", "password123", "Maker")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = c.Login(ctx, "maker", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "", c.Session().Token())

	user, err := c.Login(ctx, "maker", "password123")
	require.NoError(t, err)
	assert.Equal(t, "maker", user.Username)
	id, ok := c.Session().UserID()
	assert.True(t, ok)
	assert.Equal(t, user.ID, id)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, me)
	assert.Equal(t, user.ID, me.ID)

	found, err := c.SearchProfiles(ctx, "mak")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "maker", found[0].Username)

	c.Logout()
	assert.Equal(t, 2, events)
}
