package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"creaverse/models"

	"github.com/google/uuid"
)

var ErrEmptyDraft = errors.New("message is empty")

type SendState int

const (
	Pending SendState = iota
	Confirmed
	Failed
)

func (s SendState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("SendState(%d)", int(s))
}

// Outgoing is a locally composed message. Seq orders the outbox in send
// order whatever order the server answers in; ClientID makes retries
// idempotent on the server.
type Outgoing struct {
	Seq            uint64
	ClientID       string
	ConversationID int64
	Content        string
	State          SendState
	Message        *models.Message
	Err            error
}

// Composer sends messages optimistically: the draft is cleared as soon as
// Send is called and delivery continues in the background.
type Composer struct {
	client         *Client
	conversationID int64

	mu       sync.Mutex
	draft    string
	seq      uint64
	outbox   map[uint64]*Outgoing
	onChange func(Outgoing)
	wg       sync.WaitGroup
}

func NewComposer(c *Client, conversationID int64) *Composer {
	return &Composer{
		client:         c,
		conversationID: conversationID,
		outbox:         make(map[uint64]*Outgoing),
	}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// OnChange registers a callback for every state change of an outgoing
// message. It runs on the sending goroutine.
func (c *Composer) OnChange(fn func(Outgoing)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Send takes the draft, clears it and dispatches it. The returned entry is
// pending; watch OnChange or call Wait for the outcome.
func (c *Composer) Send(ctx context.Context) (Outgoing, error) {
	c.mu.Lock()
	content := strings.TrimSpace(c.draft)
	if content == "" {
		c.mu.Unlock()
		return Outgoing{}, ErrEmptyDraft
	}
	c.draft = ""
	c.seq++
	out := &Outgoing{
		Seq:            c.seq,
		ClientID:       uuid.NewString(),
		ConversationID: c.conversationID,
		Content:        content,
		State:          Pending,
	}
	c.outbox[out.Seq] = out
	snapshot := *out
	c.mu.Unlock()

	c.dispatch(ctx, snapshot)
	return snapshot, nil
}

// Retry re-sends a failed entry with its original client id.
func (c *Composer) Retry(ctx context.Context, seq uint64) error {
	c.mu.Lock()
	out, ok := c.outbox[seq]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("outgoing %d: %w", seq, ErrNotFound)
	}
	if out.State != Failed {
		c.mu.Unlock()
		return fmt.Errorf("outgoing %d is %s", seq, out.State)
	}
	out.State = Pending
	out.Err = nil
	snapshot := *out
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	c.dispatch(ctx, snapshot)
	return nil
}

// Discard drops a failed entry from the outbox.
func (c *Composer) Discard(seq uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.outbox[seq]
	if !ok {
		return fmt.Errorf("outgoing %d: %w", seq, ErrNotFound)
	}
	if out.State != Failed {
		return fmt.Errorf("outgoing %d is %s", seq, out.State)
	}
	delete(c.outbox, seq)
	return nil
}

// Wait blocks until every in-flight send has settled.
func (c *Composer) Wait() {
	c.wg.Wait()
}

// Outbox returns the entries in send order.
func (c *Composer) Outbox() []Outgoing {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Outgoing, 0, len(c.outbox))
	for _, out := range c.outbox {
		result = append(result, *out)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Seq < result[b].Seq })
	return result
}

func (c *Composer) dispatch(ctx context.Context, out Outgoing) {
	// the caller's cancellation must not abort a send that already left the draft
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		msg, err := c.client.SendMessage(ctx, out.ConversationID, out.Content, out.ClientID)
		if err != nil {
			slog.WarnContext(ctx, "message send failed", "seq", out.Seq, "conversation_id", out.ConversationID, "error", err)
		}
		c.settle(out.Seq, msg, err)
	}()
}

func (c *Composer) settle(seq uint64, msg *models.Message, err error) {
	c.mu.Lock()
	out, ok := c.outbox[seq]
	if !ok {
		c.mu.Unlock()
		return
	}
	if err != nil {
		out.State = Failed
		out.Err = err
	} else {
		out.State = Confirmed
		out.Message = msg
	}
	snapshot := *out
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}
