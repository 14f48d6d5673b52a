// Package memory records published cycle summaries in memory, for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultRetention is the number of summaries New keeps before dropping the
// oldest.
const DefaultRetention = 1024

// Message is one recorded summary publish.
type Message struct {
	ID      string
	Topic   string
	CycleID string
	Payload any
}

// Publisher keeps the most recent cycle summaries, indexed by cycle ID.
type Publisher struct {
	mu        sync.RWMutex
	retention int
	seq       int
	messages  []Message
	fail      error
}

// New returns a Publisher retaining DefaultRetention messages.
func New() *Publisher {
	return NewWithRetention(DefaultRetention)
}

// NewWithRetention returns a Publisher retaining at most n messages.
// Non-positive n retains everything.
func NewWithRetention(n int) *Publisher {
	return &Publisher{retention: n}
}

// FailWith makes subsequent publishes return err. A nil err restores success.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Publish records the payload and returns a sequential message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.seq++
	msg := Message{
		ID:      fmt.Sprintf("memory-%d", p.seq),
		Topic:   topic,
		CycleID: cycleID(payload),
		Payload: payload,
	}
	p.messages = append(p.messages, msg)
	if p.retention > 0 && len(p.messages) > p.retention {
		p.messages = append(p.messages[:0:0], p.messages[len(p.messages)-p.retention:]...)
	}
	return msg.ID, nil
}

// Messages returns the retained messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// ForCycle returns the latest retained summary for a cycle.
func (p *Publisher) ForCycle(id string) (Message, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].CycleID == id {
			return p.messages[i], true
		}
	}
	return Message{}, false
}

func cycleID(payload any) string {
	fields, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := fields["cycle_id"].(string)
	return id
}
