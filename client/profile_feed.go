package client

import (
	"context"
	"errors"
	"sync"

	"creaverse/browse"
	"creaverse/models"
)

// ProfileFeed browses one author's posts one at a time, anchored at the post
// id of a deep link. Navigation clamps at both ends.
type ProfileFeed struct {
	client *Client

	mu       sync.Mutex
	username string
	posts    []models.FeedPost
	ids      []int64
	cursor   *browse.Cursor
	matched  bool
	loaded   bool
}

func NewProfileFeed(c *Client) *ProfileFeed {
	return &ProfileFeed{client: c, cursor: browse.NewCursor(0, 0)}
}

// Load fetches the author's posts and positions on postID. A post id that is
// not in the list lands on the first post with Matched false. An unknown
// author or an author without posts leaves the feed in the not-found state.
func (f *ProfileFeed) Load(ctx context.Context, username string, postID int64) error {
	posts, err := f.client.ProfilePosts(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
	f.posts = posts
	f.ids = ids
	f.loaded = true
	f.locate(postID)
	return nil
}

func (f *ProfileFeed) locate(postID int64) {
	index, matched := browse.Locate(f.ids, postID)
	f.cursor = browse.NewCursor(len(f.ids), index)
	f.matched = matched
}

// SyncTo repositions after the deep link changed without user interaction,
// e.g. back/forward navigation. It reports whether postID was found.
func (f *ProfileFeed) SyncTo(postID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locate(postID)
	return f.matched
}

func (f *ProfileFeed) Prev() bool {
	return f.apply(browse.Backward)
}

func (f *ProfileFeed) Next() bool {
	return f.apply(browse.Forward)
}

// HandleKey maps ArrowLeft and ArrowRight to Prev and Next.
func (f *ProfileFeed) HandleKey(key string) bool {
	return f.apply(browse.FromKey(key))
}

// Swipe moves by a horizontal drag of dx pixels.
func (f *ProfileFeed) Swipe(dx float64) bool {
	return f.apply(browse.FromSwipe(dx))
}

func (f *ProfileFeed) apply(d browse.Direction) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := f.cursor.Apply(d)
	if moved {
		f.matched = true
	}
	return moved
}

// Current returns the post on screen; false in the not-found state.
func (f *ProfileFeed) Current() (models.FeedPost, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cursor.Valid() {
		return models.FeedPost{}, false
	}
	return f.posts[f.cursor.Index()], true
}

// CurrentID is the post id to write back into the deep link.
func (f *ProfileFeed) CurrentID() (int64, bool) {
	post, ok := f.Current()
	return post.ID, ok
}

func (f *ProfileFeed) Index() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor.Index()
}

func (f *ProfileFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// Matched reports whether the current post is the one the link asked for or
// one reached by navigation.
func (f *ProfileFeed) Matched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matched
}

func (f *ProfileFeed) NotFound() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded && len(f.posts) == 0
}

func (f *ProfileFeed) HasPrev() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor.HasPrev()
}

func (f *ProfileFeed) HasNext() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor.HasNext()
}
