// Package client is a Go SDK for the Creaverse HTTP API. It keeps the
// messaging inbox, optimistic message composer and profile post browser state
// that a UI binds to.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"creaverse/models"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// APIError is a non-2xx response. It matches ErrUnauthenticated, ErrNotFound
// and ErrConflict through errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL. A nil session gets a fresh one.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// requireSession fails fast without a network round trip when nobody is
// signed in.
func (c *Client) requireSession() error {
	if c.session.Token() == "" {
		return ErrUnauthenticated
	}
	return nil
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, username, password, displayName string) (*models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and signs the session in.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	c.session.SignIn(res.User, res.Token)
	return res.User, nil
}

func (c *Client) Logout() {
	c.session.SignOut()
}

// Me returns the current user, or nil without a valid session.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var res struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

func (c *Client) Profile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(username), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SearchProfiles(ctx context.Context, query string) ([]models.ProfileSummary, error) {
	var res struct {
		Profiles []models.ProfileSummary `json:"profiles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles?q="+url.QueryEscape(query), nil, &res); err != nil {
		return nil, err
	}
	return res.Profiles, nil
}

func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var res struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res.Conversations, nil
}

func (c *Client) Conversation(ctx context.Context, id int64) (*models.ConversationSummary, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var detail models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// StartConversation finds or creates the conversation with userID.
func (c *Client) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var conv models.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversations", map[string]int64{"user_id": userID}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) Messages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var res struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID int64, content, clientID string) (*models.Message, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var msg models.Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID), map[string]string{
		"content":   content,
		"client_id": clientID,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead flags the incoming messages of the conversation as read and
// returns how many changed.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) (int64, error) {
	if err := c.requireSession(); err != nil {
		return 0, err
	}
	var res struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/read", conversationID), nil, &res); err != nil {
		return 0, err
	}
	return res.Updated, nil
}

func (c *Client) SetPresence(ctx context.Context, online bool) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/api/v1/presence", map[string]bool{"online": online}, nil)
}

func (c *Client) Presence(ctx context.Context, userID int64) (*models.Presence, error) {
	var p models.Presence
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/presence/%d", userID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfilePosts returns the author's posts newest first.
func (c *Client) ProfilePosts(ctx context.Context, username string) ([]models.FeedPost, error) {
	var res struct {
		Posts []models.FeedPost `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(username)+"/posts", nil, &res); err != nil {
		return nil, err
	}
	return res.Posts, nil
}

// BrowseProfileFeed resolves one deep link server side.
func (c *Client) BrowseProfileFeed(ctx context.Context, username string, postID int64) (*models.BrowseResponse, error) {
	var res models.BrowseResponse
	path := fmt.Sprintf("/api/v1/profiles/%s/feed/%d", url.PathEscape(username), postID)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreatePost(ctx context.Context, caption string, tags []string) (*models.FeedPost, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var post models.FeedPost
	err := c.do(ctx, http.MethodPost, "/api/v1/posts", map[string]interface{}{
		"caption": caption,
		"tags":    tags,
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}
