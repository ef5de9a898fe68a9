package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFeedNavigation(t *testing.T) {
	srv := newAPI(t, nil)
	ctx := context.Background()
	author, _ := signedIn(t, srv, "painter")

	var ids []int64
	for _, caption := range []string{"sketch", "study", "final piece"} {
		post, err := author.CreatePost(ctx, caption, []string{"art"})
		require.NoError(t, err)
		ids = append(ids, post.ID)
	}
	// newest first
	p3, p2, p1 := ids[2], ids[1], ids[0]

	viewer := New(srv.URL, nil)
	feed := NewProfileFeed(viewer)
	require.NoError(t, feed.Load(ctx, "painter", p2))
	assert.Equal(t, 3, feed.Len())
	assert.Equal(t, 1, feed.Index())
	assert.True(t, feed.Matched())
	assert.True(t, feed.HasPrev())
	assert.True(t, feed.HasNext())

	assert.True(t, feed.Next())
	id, ok := feed.CurrentID()
	require.True(t, ok)
	assert.Equal(t, p1, id)

	// clamps at the end, no wraparound
	assert.False(t, feed.Next())
	assert.False(t, feed.HandleKey("ArrowRight"))
	assert.Equal(t, 2, feed.Index())
	assert.False(t, feed.HasNext())

	assert.True(t, feed.HandleKey("ArrowLeft"))
	assert.False(t, feed.HandleKey("Enter"))
	assert.True(t, feed.Swipe(80))
	assert.Equal(t, 0, feed.Index())
	assert.False(t, feed.Prev())
	assert.False(t, feed.Swipe(120))
	assert.False(t, feed.Swipe(-10))
	assert.True(t, feed.Swipe(-60))
	assert.Equal(t, 1, feed.Index())

	assert.True(t, feed.SyncTo(p3))
	assert.Equal(t, 0, feed.Index())
}

func TestProfileFeedUnknownPostLandsOnFirst(t *testing.T) {
	srv := newAPI(t, nil)
	ctx := context.Background()
	author, _ := signedIn(t, srv, "sculptor")

	var newest int64
	for _, caption := range []string{"clay", "bronze"} {
		post, err := author.CreatePost(ctx, caption, nil)
		require.NoError(t, err)
		newest = post.ID
	}

	feed := NewProfileFeed(author)
	require.NoError(t, feed.Load(ctx, "sculptor", 9999))
	assert.Equal(t, 0, feed.Index())
	assert.False(t, feed.Matched())
	post, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, newest, post.ID)
	assert.False(t, feed.NotFound())

	// moving makes the shown post the user's choice
	assert.True(t, feed.Next())
	assert.True(t, feed.Matched())

	assert.False(t, feed.SyncTo(12345))
	assert.Equal(t, 0, feed.Index())
}

func TestProfileFeedNotFound(t *testing.T) {
	srv := newAPI(t, nil)
	ctx := context.Background()
	signedIn(t, srv, "quiet")
	viewer := New(srv.URL, nil)

	for _, username := range []string{"quiet", "nobody_here"} {
		feed := NewProfileFeed(viewer)
		assert.False(t, feed.NotFound())
		require.NoError(t, feed.Load(ctx, username, 1))
		assert.True(t, feed.NotFound(), username)
		_, ok := feed.Current()
		assert.False(t, ok)
		assert.False(t, feed.Next())
		assert.False(t, feed.HasPrev())
	}
}

func TestBrowseProfileFeedServerSide(t *testing.T) {
	srv := newAPI(t, nil)
	ctx := context.Background()
	author, _ := signedIn(t, srv, "etcher")

	first, err := author.CreatePost(ctx, "plate one", nil)
	require.NoError(t, err)
	second, err := author.CreatePost(ctx, "plate two", nil)
	require.NoError(t, err)

	res, err := author.BrowseProfileFeed(ctx, "etcher", first.ID)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, 2, res.Total)
	require.NotNil(t, res.PrevID)
	assert.Equal(t, second.ID, *res.PrevID)
	assert.Nil(t, res.NextID)

	_, err = author.BrowseProfileFeed(ctx, "nobody_here", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
