package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/db"
	"creaverse/models"
	"creaverse/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router *gin.Engine
}

func newTestApp(t *testing.T, sendRPS int) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	prev := db.ORM
	db.ORM = database
	t.Cleanup(func() {
		db.ORM = prev
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	tokens := services.NewTokenService("test-secret", time.Hour)
	ws := services.NewWSConnManager()
	notifications := services.NewNotificationService()
	rewards := services.NewRewardService(nil)
	bus := services.NewEventBus(nil, services.NewDispatcher(notifications, rewards, ws))
	presence := services.NewPresenceService(nil)
	posts := services.NewPostService(nil, bus)
	messages := services.NewMessageService(bus)

	h := handlers.New(handlers.Deps{
		Profiles:      services.NewProfileService(tokens),
		Follows:       services.NewFollowService(bus, posts),
		Conversations: services.NewConversationService(presence),
		Messages:      messages,
		Presence:      presence,
		Posts:         posts,
		Categories:    services.NewCategoryService(),
		Notifications: notifications,
		Governance:    services.NewGovernanceService(bus, 1, time.Hour),
		Rewards:       rewards,
		Media:         services.NewMediaService(services.MediaConfig{}),
		Counters:      services.NewCounterService(messages, notifications),
		WS:            ws,
		ServiceName:   "creaverse-test",
	})
	return &testApp{router: NewRouter(h, tokens, middleware.NewUserRateLimiter(sendRPS))}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signUp регистрирует пользователя и возвращает токен и id
func (a *testApp) signUp(t *testing.T, username string) (string, int64) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[services.LoginResult](t, rec)
	require.NotEmpty(t, login.Token)
	return login.Token, login.User.ID
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())

	token, id := app.signUp(t, "alice")

	rec = app.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User models.User `json:"user"`
	}](t, rec)
	assert.Equal(t, id, me.User.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = app.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "ALICE", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/v1/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPatch, "/api/v1/profiles/me", token, gin.H{"bio": "painter"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "painter", decode[models.User](t, rec).Bio)

	rec = app.do(t, http.MethodGet, "/api/v1/profiles?q=ali", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[struct {
		Profiles []models.ProfileSummary `json:"profiles"`
	}](t, rec)
	require.Len(t, found.Profiles, 1)
	assert.Equal(t, "alice", found.Profiles[0].Username)
}

type conversationList struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

func TestConversationUnreadScenario(t *testing.T) {
	app := newTestApp(t, 100)
	t1, _ := app.signUp(t, "u_one")
	t2, u2 := app.signUp(t, "u_two")

	rec := app.do(t, http.MethodPost, "/api/v1/conversations", t1, gin.H{"user_id": u2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[models.Conversation](t, rec)

	// повторный вызов возвращает тот же диалог
	rec = app.do(t, http.MethodPost, "/api/v1/conversations", t2, gin.H{"user_id": conv.Other(u2)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conv.ID, decode[models.Conversation](t, rec).ID)

	messagesPath := fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID)
	for _, send := range []struct {
		token, content string
	}{{t1, "hi"}, {t1, "are you there?"}, {t2, "yes"}} {
		rec = app.do(t, http.MethodPost, messagesPath, send.token, gin.H{"content": send.content})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodGet, "/api/v1/conversations", t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[conversationList](t, rec)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, int64(1), list.Conversations[0].UnreadCount)
	require.NotNil(t, list.Conversations[0].LastMessage)
	assert.Equal(t, "yes", list.Conversations[0].LastMessage.Content)

	rec = app.do(t, http.MethodGet, messagesPath, t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	thread := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, rec)
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, "hi", thread.Messages[0].Content)

	rec = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/read", conv.ID), t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/conversations", t1, nil)
	list = decode[conversationList](t, rec)
	assert.Equal(t, int64(0), list.Conversations[0].UnreadCount)

	// u2 has not read the two messages from u1 yet
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d", conv.ID), t2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[models.ConversationSummary](t, rec).UnreadCount)

	rec = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/read", conv.ID), t2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":2}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d", conv.ID), t2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[models.ConversationSummary](t, rec).UnreadCount)
}

func TestConversationErrors(t *testing.T) {
	app := newTestApp(t, 100)
	t1, u1 := app.signUp(t, "first")
	_, u2 := app.signUp(t, "second")
	t3, _ := app.signUp(t, "outsider")

	rec := app.do(t, http.MethodPost, "/api/v1/conversations", t1, gin.H{"user_id": u1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/v1/conversations", t1, gin.H{"user_id": 9999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/conversations", t1, gin.H{"user_id": u2})
	conv := decode[models.Conversation](t, rec)
	messagesPath := fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID)

	rec = app.do(t, http.MethodPost, messagesPath, t1, gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, messagesPath, t3, gin.H{"content": "let me in"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d", conv.ID), t3, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/conversations/abc", t1, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendIsRateLimitedPerUser(t *testing.T) {
	app := newTestApp(t, 1)
	t1, _ := app.signUp(t, "chatty")
	t2, u2 := app.signUp(t, "quiet")

	rec := app.do(t, http.MethodPost, "/api/v1/conversations", t1, gin.H{"user_id": u2})
	conv := decode[models.Conversation](t, rec)
	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID)

	rec = app.do(t, http.MethodPost, path, t1, gin.H{"content": "one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = app.do(t, http.MethodPost, path, t1, gin.H{"content": "two"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// у другого пользователя своя квота
	rec = app.do(t, http.MethodPost, path, t2, gin.H{"content": "three"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestProfileFeedBrowse(t *testing.T) {
	app := newTestApp(t, 100)
	token, _ := app.signUp(t, "artist")
	app.signUp(t, "lurker")

	var ids []int64
	for _, caption := range []string{"one", "two", "three"} {
		rec := app.do(t, http.MethodPost, "/api/v1/posts", token, gin.H{"caption": caption, "category": "art"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, decode[models.FeedPost](t, rec).ID)
	}

	rec := app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/profiles/artist/feed/%d", ids[1]), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[models.BrowseResponse](t, rec)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.Matched)
	require.NotNil(t, res.PrevID)
	require.NotNil(t, res.NextID)
	assert.Equal(t, ids[2], *res.PrevID)
	assert.Equal(t, ids[0], *res.NextID)

	rec = app.do(t, http.MethodGet, "/api/v1/profiles/artist/feed/9999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[models.BrowseResponse](t, rec)
	assert.Equal(t, 0, res.Index)
	assert.False(t, res.Matched)
	assert.Equal(t, ids[2], res.Post.ID)
	assert.Nil(t, res.PrevID)

	rec = app.do(t, http.MethodGet, "/api/v1/profiles/lurker/feed/1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/v1/profiles/nobody/feed/1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	categories := decode[struct {
		Categories []models.CategoryWithCount `json:"categories"`
	}](t, rec)
	for _, c := range categories.Categories {
		if c.Slug == "art" {
			assert.Equal(t, int64(3), c.PostCount)
		}
	}
}

func TestEngagementNotificationsAndCounters(t *testing.T) {
	app := newTestApp(t, 100)
	authorToken, authorID := app.signUp(t, "author")
	fanToken, _ := app.signUp(t, "fan")

	rec := app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/follows/%d", authorID), fanToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/follows/%d", authorID), fanToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/posts", authorToken, gin.H{"caption": "new piece", "tags": []string{"#Oil", "oil"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decode[models.FeedPost](t, rec)
	assert.Equal(t, []string{"oil"}, post.Tags)

	rec = app.do(t, http.MethodGet, "/api/v1/feed", fanToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[models.FeedResponse](t, rec)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, post.ID, feed.Posts[0].ID)

	postPath := fmt.Sprintf("/api/v1/posts/%d", post.ID)
	rec = app.do(t, http.MethodPost, postPath+"/like", fanToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[models.Post](t, rec).LikesCount)
	rec = app.do(t, http.MethodPost, postPath+"/like", fanToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, postPath+"/reviews", fanToken, gin.H{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, postPath+"/reviews", fanToken, gin.H{"rating": 5, "content": "great"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/notifications?type=like", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	likes := decode[struct {
		Notifications []models.Notification `json:"notifications"`
	}](t, rec)
	require.Len(t, likes.Notifications, 1)
	require.NotNil(t, likes.Notifications[0].SourceUser)
	assert.Equal(t, "fan", likes.Notifications[0].SourceUser.Username)

	rec = app.do(t, http.MethodGet, "/api/v1/me/counters", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counters := decode[struct {
		Counters services.Counters `json:"counters"`
	}](t, rec)
	// follow, like, review
	assert.Equal(t, int64(3), counters.Counters.UnreadNotifications)

	rec = app.do(t, http.MethodPost, "/api/v1/notifications/read", authorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[struct {
		Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	}](t, rec)
	require.NotEmpty(t, board.Leaderboard)
	assert.Equal(t, authorID, board.Leaderboard[0].User.ID)
	// follow 2 + like 1 + review 3
	assert.Equal(t, int64(6), board.Leaderboard[0].Points)

	rec = app.do(t, http.MethodDelete, postPath, fanToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodDelete, postPath, authorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProposalLifecycle(t *testing.T) {
	app := newTestApp(t, 100)
	token, _ := app.signUp(t, "founder")

	rec := app.do(t, http.MethodPost, "/api/v1/proposals", token, gin.H{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/proposals", token, gin.H{"title": "Fund a mural", "description": "downtown wall"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	proposal := decode[models.Proposal](t, rec)
	assert.Equal(t, models.ProposalActive, proposal.Status)

	path := fmt.Sprintf("/api/v1/proposals/%d", proposal.ID)
	rec = app.do(t, http.MethodPost, path+"/votes", token, gin.H{"type": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, path+"/votes", token, gin.H{"type": "for"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodPost, path+"/votes", token, gin.H{"type": "against"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		Proposal models.Proposal `json:"proposal"`
		MyVote   *models.Vote    `json:"my_vote"`
	}](t, rec)
	assert.Equal(t, float64(1), detail.Proposal.VotesFor)
	require.NotNil(t, detail.MyVote)
	assert.Equal(t, models.VoteFor, detail.MyVote.Type)

	rec = app.do(t, http.MethodPost, path+"/finalize", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/proposals?status=active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Proposals []models.Proposal `json:"proposals"`
	}](t, rec)
	assert.Len(t, list.Proposals, 1)
}

func TestMediaAndMetrics(t *testing.T) {
	app := newTestApp(t, 100)
	token, _ := app.signUp(t, "uploader")

	rec := app.do(t, http.MethodPost, "/api/v1/media/uploads", token, gin.H{"content_type": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/media/download?key=uploads/1/a.png", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/v1/media/download?key=uploads/1/a.png", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
