// Package backendtest — программируемые фейки backend.Client/Session/Connector.
package backendtest

import (
	"context"
	"sync"

	"tg-channel-cleaner/internal/domain/backend"
)

// Channel — фейковый разрешённый канал.
type Channel struct {
	ID   int64
	Name string
}

func (c Channel) ChatID() int64 { return c.ID }
func (c Channel) Title() string { return c.Name }

// Client — фейковый клиент: канал из сообщений MessageIDs.
// DeleteErrs задаёт ошибку удаления по ID сообщения. Удалённые сообщения
// при повторном вызове Messages уже не возвращаются.
type Client struct {
	Channel    Channel
	ResolveErr error
	Perms      backend.Permissions
	PermsErr   error
	MessageIDs []int
	IterErr    error
	// IterErrs — ошибки итератора для очередных вызовов Messages; когда они
	// заканчиваются, действует IterErr.
	IterErrs []error
	// IterLimit ограничивает число сообщений за один проход (0 — без предела).
	IterLimit  int
	DeleteErrs map[int]error

	mu      sync.Mutex
	deleted []int
	opens   int
}

var _ backend.Client = (*Client)(nil)

func (c *Client) ResolveChannel(_ context.Context, chatID int64) (backend.Channel, error) {
	if c.ResolveErr != nil {
		return nil, c.ResolveErr
	}
	ch := c.Channel
	ch.ID = chatID
	return ch, nil
}

func (c *Client) SelfPermissions(context.Context, backend.Channel) (backend.Permissions, error) {
	return c.Perms, c.PermsErr
}

func (c *Client) Messages(context.Context, backend.Channel) (backend.MessageIterator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.IterErr
	if c.opens < len(c.IterErrs) {
		err = c.IterErrs[c.opens]
	}
	c.opens++

	gone := make(map[int]bool, len(c.deleted))
	for _, id := range c.deleted {
		gone[id] = true
	}
	ids := make([]int, 0, len(c.MessageIDs))
	for _, id := range c.MessageIDs {
		if !gone[id] {
			ids = append(ids, id)
		}
	}
	return &iterator{ids: ids, err: err, limit: c.IterLimit, pos: -1}, nil
}

// Opens — сколько раз вызван Messages.
func (c *Client) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func (c *Client) DeleteMessage(_ context.Context, _ backend.Channel, msg backend.Message) error {
	if err := c.DeleteErrs[msg.ID]; err != nil {
		return err
	}
	c.mu.Lock()
	c.deleted = append(c.deleted, msg.ID)
	c.mu.Unlock()
	return nil
}

// Deleted возвращает ID успешно удалённых сообщений в порядке удаления.
func (c *Client) Deleted() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.deleted...)
}

type iterator struct {
	ids   []int
	err   error
	limit int
	pos   int
}

func (it *iterator) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if it.exhausted() {
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Value() backend.Message { return backend.Message{ID: it.ids[it.pos]} }

// Err отдаёт ошибку прохода только после его исчерпания.
func (it *iterator) Err() error {
	if it.exhausted() {
		return it.err
	}
	return nil
}

func (it *iterator) exhausted() bool {
	if it.limit > 0 && it.pos+1 >= it.limit {
		return true
	}
	return it.pos+1 >= len(it.ids)
}

// Session — фейковая вторичная сессия.
type Session struct {
	AlreadyAuthorized bool
	Sent              backend.SentCode
	SendCodeErr       error
	NeedPassword      bool
	SignInErr         error
	PasswordErr       error
	Backend           *Client

	mu          sync.Mutex
	disconnects int
	gotCode     string
	gotPassword string
}

var _ backend.Session = (*Session)(nil)

func (s *Session) Authorized(context.Context) (bool, error) { return s.AlreadyAuthorized, nil }

func (s *Session) SendCode(context.Context, string) (backend.SentCode, error) {
	return s.Sent, s.SendCodeErr
}

func (s *Session) SignIn(_ context.Context, _, code, _ string) error {
	s.mu.Lock()
	s.gotCode = code
	s.mu.Unlock()
	if s.SignInErr != nil {
		return s.SignInErr
	}
	if s.NeedPassword {
		return backend.ErrPasswordNeeded
	}
	return nil
}

func (s *Session) Password(_ context.Context, password string) error {
	s.mu.Lock()
	s.gotPassword = password
	s.mu.Unlock()
	return s.PasswordErr
}

func (s *Session) Client() backend.Client { return s.Backend }

func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
	return nil
}

// Disconnects — сколько раз вызван Disconnect.
func (s *Session) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// Code — код, с которым вызван SignIn.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotCode
}

// PasswordUsed — пароль, с которым вызван Password.
func (s *Session) PasswordUsed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotPassword
}

// Connector возвращает заранее подготовленную Session.
type Connector struct {
	Session *Session
	Err     error

	mu    sync.Mutex
	calls int
}

var _ backend.Connector = (*Connector)(nil)

func (c *Connector) Connect(context.Context, int, string) (backend.Session, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Session, nil
}

// Calls — число подключений.
func (c *Connector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
