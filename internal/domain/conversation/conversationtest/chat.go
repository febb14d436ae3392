// Package conversationtest — записывающий фейк conversation.Chat для тестов флоу и диспетчера.
package conversationtest

import (
	"context"
	"strings"
	"sync"

	"tg-channel-cleaner/internal/domain/conversation"
)

// Sent — одно исходящее сообщение.
type Sent struct {
	ID      int
	Text    string
	Buttons [][]conversation.Button
}

// Edited — одна правка сообщения.
type Edited struct {
	ID   int
	Text string
}

// Chat записывает отправки и правки. OnSend вызывается после каждой отправки
// (в тестах через него «отвечает пользователь»).
type Chat struct {
	mu     sync.Mutex
	nextID int
	sent   []Sent
	edited []Edited

	OnSend func(text string)
}

var _ conversation.Chat = (*Chat)(nil)

func (c *Chat) Send(_ context.Context, text string) (int, error) {
	return c.record(text, nil), nil
}

func (c *Chat) SendMenu(_ context.Context, text string, rows [][]conversation.Button) (int, error) {
	return c.record(text, rows), nil
}

func (c *Chat) Edit(_ context.Context, msgID int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edited = append(c.edited, Edited{ID: msgID, Text: text})
	return nil
}

func (c *Chat) record(text string, rows [][]conversation.Button) int {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.sent = append(c.sent, Sent{ID: id, Text: text, Buttons: rows})
	hook := c.OnSend
	c.mu.Unlock()

	if hook != nil {
		hook(text)
	}
	return id
}

// Sent возвращает копию отправленных сообщений.
func (c *Chat) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Edited возвращает копию правок.
func (c *Chat) Edited() []Edited {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Edited, len(c.edited))
	copy(out, c.edited)
	return out
}

// Menus считает отправленные меню (сообщения с кнопками).
func (c *Chat) Menus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sent {
		if len(s.Buttons) > 0 {
			n++
		}
	}
	return n
}

// Contains сообщает, отправлялось или правилось ли сообщение с подстрокой sub.
func (c *Chat) Contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sent {
		if strings.Contains(s.Text, sub) {
			return true
		}
	}
	for _, e := range c.edited {
		if strings.Contains(e.Text, sub) {
			return true
		}
	}
	return false
}
