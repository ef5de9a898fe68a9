package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/api/routes"
	"creaverse/db"
	"creaverse/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// newAPI runs the real API on an in-memory database. wrap may intercept
// requests before the router sees them.
func newAPI(t *testing.T, wrap func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	prev := db.ORM
	db.ORM = database

	tokens := services.NewTokenService("client-test", time.Hour)
	ws := services.NewWSConnManager()
	notifications := services.NewNotificationService()
	bus := services.NewEventBus(nil, services.NewDispatcher(notifications, services.NewRewardService(nil), ws))
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
		Rewards:       services.NewRewardService(nil),
		Media:         services.NewMediaService(services.MediaConfig{}),
		Counters:      services.NewCounterService(messages, notifications),
		WS:            ws,
	})

	var handler http.Handler = routes.NewRouter(h, tokens, middleware.NewUserRateLimiter(1000))
	if wrap != nil {
		handler = wrap(handler)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		db.ORM = prev
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return srv
}

// signedIn registers username and returns a client logged in as them.
func signedIn(t *testing.T, srv *httptest.Server, username string) (*Client, int64) {
	t.Helper()
	c := New(srv.URL, nil)
	ctx := context.Background()
	_, err := c.Register(ctx, username, "password123", "")
	require.NoError(t, err)
	user, err := c.Login(ctx, username, "password123")
	require.NoError(t, err)
	return c, user.ID
}
