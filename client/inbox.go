package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"creaverse/models"
)

// Inbox is the messaging screen state: the conversation list, the selected
// conversation and its thread. Every loader keeps its own loading flag.
type Inbox struct {
	client *Client

	mu                   sync.Mutex
	conversations        []models.ConversationSummary
	selected             *models.ConversationSummary
	messages             []models.Message
	conversationsLoading bool
	messagesLoading      bool
	needsSignIn          bool
	mounted              bool
	unsubscribe          func()
}

func NewInbox(c *Client) *Inbox {
	i := &Inbox{client: c}
	i.needsSignIn = c.Session().Token() == ""
	i.unsubscribe = c.Session().Subscribe(i.onAuthChange)
	return i
}

func (i *Inbox) onAuthChange(user *models.User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if user == nil {
		i.conversations = nil
		i.selected = nil
		i.messages = nil
		i.needsSignIn = true
		return
	}
	i.needsSignIn = false
}

// gate records a missing session as the sign-in prompt state.
func (i *Inbox) gate(err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		i.mu.Lock()
		i.needsSignIn = true
		i.mu.Unlock()
	}
	return err
}

// Mount marks the viewer online; Unmount marks them offline and detaches
// from the session.
func (i *Inbox) Mount(ctx context.Context) error {
	if err := i.client.SetPresence(ctx, true); err != nil {
		return i.gate(err)
	}
	i.mu.Lock()
	i.mounted = true
	i.mu.Unlock()
	return nil
}

func (i *Inbox) Unmount(ctx context.Context) error {
	i.mu.Lock()
	wasMounted := i.mounted
	i.mounted = false
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if !wasMounted || i.client.Session().Token() == "" {
		return nil
	}
	return i.client.SetPresence(ctx, false)
}

func (i *Inbox) LoadConversations(ctx context.Context) error {
	i.setConversationsLoading(true)
	defer i.setConversationsLoading(false)

	conversations, err := i.client.Conversations(ctx)
	if err != nil {
		return i.gate(err)
	}

	i.mu.Lock()
	i.conversations = conversations
	i.needsSignIn = false
	i.mu.Unlock()
	return nil
}

// SelectConversation opens a conversation. The detail endpoint is the fast
// path; when it fails the cached list is scanned; when both miss, the
// selection is cleared and ErrNotFound returned. Opening loads the thread and
// marks it read.
func (i *Inbox) SelectConversation(ctx context.Context, id int64) error {
	detail, err := i.client.Conversation(ctx, id)
	if errors.Is(err, ErrUnauthenticated) {
		return i.gate(err)
	}
	if err != nil {
		detail = i.cached(id)
	}

	i.mu.Lock()
	i.selected = detail
	i.messages = nil
	i.mu.Unlock()
	if detail == nil {
		return fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}

	if err := i.LoadThread(ctx); err != nil {
		return err
	}
	return i.markSelectedRead(ctx)
}

func (i *Inbox) cached(id int64) *models.ConversationSummary {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, c := range i.conversations {
		if c.ID == id {
			found := c
			return &found
		}
	}
	return nil
}

func (i *Inbox) markSelectedRead(ctx context.Context) error {
	i.mu.Lock()
	if i.selected == nil || i.selected.UnreadCount == 0 {
		i.mu.Unlock()
		return nil
	}
	id, otherID := i.selected.ID, i.selected.OtherUser.ID
	i.mu.Unlock()

	if _, err := i.client.MarkRead(ctx, id); err != nil {
		return i.gate(err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for k := range i.conversations {
		if i.conversations[k].ID == id {
			i.conversations[k].UnreadCount = 0
		}
	}
	if i.selected == nil || i.selected.ID != id {
		return nil
	}
	i.selected.UnreadCount = 0
	for k := range i.messages {
		if i.messages[k].SenderID == otherID {
			i.messages[k].IsRead = true
		}
	}
	return nil
}

// LoadThread fetches the messages of the selected conversation.
func (i *Inbox) LoadThread(ctx context.Context) error {
	i.mu.Lock()
	if i.selected == nil {
		i.mu.Unlock()
		return nil
	}
	id := i.selected.ID
	i.messagesLoading = true
	i.mu.Unlock()

	messages, err := i.client.Messages(ctx, id, 0)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.messagesLoading = false
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			i.needsSignIn = true
		}
		return err
	}
	if i.selected != nil && i.selected.ID == id {
		i.messages = messages
	}
	return nil
}

// StartChat finds or creates the conversation with userID and opens it
// without waiting for a list reload.
func (i *Inbox) StartChat(ctx context.Context, userID int64) (int64, error) {
	conv, err := i.client.StartConversation(ctx, userID)
	if err != nil {
		return 0, i.gate(err)
	}
	if err := i.SelectConversation(ctx, conv.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return conv.ID, err
	}
	return conv.ID, nil
}

// AppendMessage adds a confirmed message to the open thread, e.g. from a
// composer or a websocket push.
func (i *Inbox) AppendMessage(msg models.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.selected == nil || i.selected.ID != msg.ConversationID {
		return
	}
	for _, m := range i.messages {
		if m.ID == msg.ID {
			return
		}
	}
	i.messages = append(i.messages, msg)
	i.selected.LastMessage = &msg
}

func (i *Inbox) setConversationsLoading(v bool) {
	i.mu.Lock()
	i.conversationsLoading = v
	i.mu.Unlock()
}

func (i *Inbox) ConversationsLoading() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conversationsLoading
}

func (i *Inbox) MessagesLoading() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.messagesLoading
}

func (i *Inbox) NeedsSignIn() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.needsSignIn
}

func (i *Inbox) Conversations() []models.ConversationSummary {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]models.ConversationSummary(nil), i.conversations...)
}

// Selected returns a copy of the open conversation, or nil.
func (i *Inbox) Selected() *models.ConversationSummary {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.selected == nil {
		return nil
	}
	s := *i.selected
	return &s
}

func (i *Inbox) Messages() []models.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]models.Message(nil), i.messages...)
}
