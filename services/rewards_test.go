package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardUpdatesVotingPower(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rewards := NewRewardService(nil)
	user := createTestUser(t, "creator")

	require.NoError(t, rewards.Award(ctx, user.ID, "like", 150))
	points, err := rewards.Points(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), points)

	profile, err := NewProfileService(nil).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, profile.VotingPower)
}

func TestVotingPowerFor(t *testing.T) {
	assert.Equal(t, 1.0, VotingPowerFor(0))
	assert.Equal(t, 1.0, VotingPowerFor(99))
	assert.Equal(t, 2.0, VotingPowerFor(100))
	assert.Equal(t, 1.0, VotingPowerFor(-5))
}

func TestLeaderboardSQLFallback(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rewards := NewRewardService(nil)
	a := createTestUser(t, "alpha")
	b := createTestUser(t, "beta")
	require.NoError(t, rewards.Award(ctx, a.ID, "like", 1))
	require.NoError(t, rewards.Award(ctx, b.ID, "review", 3))
	require.NoError(t, rewards.Award(ctx, a.ID, "like", 1))

	board, err := rewards.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "beta", board[0].User.Username)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, int64(3), board[0].Points)
	assert.Equal(t, int64(2), board[1].Points)
}

func TestLeaderboardRedis(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rdb, mr := setupTestRedis(t)
	rewards := NewRewardService(rdb)
	a := createTestUser(t, "alpha")
	b := createTestUser(t, "beta")

	require.NoError(t, rewards.Award(ctx, a.ID, "comment", 2))
	require.NoError(t, rewards.Award(ctx, b.ID, "like", 1))

	score, err := mr.ZScore(LeaderboardKey, "1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)

	board, err := rewards.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "alpha", board[0].User.Username)

	mr.Del(LeaderboardKey)
	require.NoError(t, rewards.ReconcileLeaderboard(ctx))
	members, err := mr.ZMembers(LeaderboardKey)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestLikeUnlikeCycleAwardsOnce(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rewards := NewRewardService(nil)
	bus := NewEventBus(nil, NewDispatcher(NewNotificationService(), rewards, NewWSConnManager()))
	ps := NewPostService(nil, bus)
	follows := NewFollowService(bus, ps)

	author := createTestUser(t, "author")
	fan := createTestUser(t, "fan")
	post := createPost(t, ps, author.ID, "hello")

	for i := 0; i < 100; i++ {
		_, err := ps.LikePost(ctx, fan.ID, post.ID)
		require.NoError(t, err)
		_, err = ps.UnlikePost(ctx, fan.ID, post.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, follows.Follow(ctx, fan.ID, author.ID))
		require.NoError(t, follows.Unfollow(ctx, fan.ID, author.ID))
	}

	// like 1 + follow 2
	points, err := rewards.Points(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), points)

	profile, err := NewProfileService(nil).GetByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, profile.VotingPower)
}

func TestAwardOnceIgnoresRepeatedSource(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rdb, mr := setupTestRedis(t)
	rewards := NewRewardService(rdb)
	user := createTestUser(t, "creator")

	granted, err := rewards.AwardOnce(ctx, user.ID, "like", "like:1:2:3", 1)
	require.NoError(t, err)
	assert.True(t, granted)
	granted, err = rewards.AwardOnce(ctx, user.ID, "like", "like:1:2:3", 1)
	require.NoError(t, err)
	assert.False(t, granted)
	// repeatable rewards carry no source
	require.NoError(t, rewards.Award(ctx, user.ID, "comment", 2))
	require.NoError(t, rewards.Award(ctx, user.ID, "comment", 2))

	points, err := rewards.Points(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), points)
	score, err := mr.ZScore(LeaderboardKey, "1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)
}

func TestLeaderboardRebuildsMissingSet(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rdb, mr := setupTestRedis(t)
	a := createTestUser(t, "alpha")
	b := createTestUser(t, "beta")

	// очки начислены, пока Redis не использовался
	require.NoError(t, NewRewardService(nil).Award(ctx, a.ID, "review", 300))
	assert.False(t, mr.Exists(LeaderboardKey))

	rewards := NewRewardService(rdb)
	require.NoError(t, rewards.Award(ctx, b.ID, "like", 1))

	board, err := rewards.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alpha", board[0].User.Username)
	assert.Equal(t, int64(300), board[0].Points)
	assert.Equal(t, "beta", board[1].User.Username)
	assert.Equal(t, int64(1), board[1].Points)

	// existing set is incremented in place
	require.NoError(t, rewards.Award(ctx, b.ID, "like", 1))
	score, err := mr.ZScore(LeaderboardKey, "2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
}
