// Package conversation — пошаговый диалог «вопрос → ответ» с одним пользователем.
//
// Conversation — явный автомат: Open → Awaiting → Open … → Closed. Из состояния
// Awaiting есть ровно три перехода:
//   - ответ: Deliver передаёт текст ожидающему Ask;
//   - таймаут: нет ответа за окно неактивности → ErrTimeout и закрытие;
//   - отмена: Cancel (команда /cancel, /start, сброс сессии) → ErrCancelled и закрытие.
//
// Одновременно может ожидаться не больше одного ответа. Ответы, пришедшие вне
// ожидания, не принимаются: они не относятся ни к одному вопросу.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tg-channel-cleaner/internal/domain/faults"
)

// CancelCommand — буквальный ответ, превращающийся в отмену диалога.
const CancelCommand = "/cancel"

// ErrBusy — попытка задать второй вопрос, пока не получен ответ на первый.
var ErrBusy = errors.New("conversation: reply already awaited")

// Button — inline-кнопка с callback-данными.
type Button struct {
	Text string
	Data string
}

// Chat — исходящий канал к пользователю (личный чат с ботом).
type Chat interface {
	Send(ctx context.Context, text string) (int, error)
	SendMenu(ctx context.Context, text string, rows [][]Button) (int, error)
	Edit(ctx context.Context, msgID int, text string) error
}

// State — состояние автомата диалога.
type State int

const (
	Open State = iota
	Awaiting
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Awaiting:
		return "awaiting"
	default:
		return "closed"
	}
}

// TimeoutNotice — сигнал самого механизма диалога о брошенном флоу.
const TimeoutNotice = "⌛ No reply received in time, the dialog was closed."

// Conversation — диалог, принадлежащий ровно одному флоу.
type Conversation struct {
	chat    Chat
	timeout time.Duration

	mu       sync.Mutex
	state    State
	replies  chan string
	done     chan struct{}
	cause    error
	external bool
}

// New создаёт открытый диалог с окном неактивности timeout.
func New(chat Chat, timeout time.Duration) *Conversation {
	return &Conversation{
		chat:    chat,
		timeout: timeout,
		replies: make(chan string, 1),
		done:    make(chan struct{}),
	}
}

// Chat возвращает исходящий канал диалога.
func (c *Conversation) Chat() Chat { return c.chat }

// State возвращает текущее состояние автомата.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done закрывается при переходе в Closed.
func (c *Conversation) Done() <-chan struct{} { return c.done }

// Err — причина закрытия (nil для штатного Close).
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// CancelledExternally сообщает, что диалог отменён извне (Cancel), а не ответом.
func (c *Conversation) CancelledExternally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.external
}

// Send отправляет сообщение без ожидания ответа.
func (c *Conversation) Send(ctx context.Context, text string) (int, error) {
	if err := c.Err(); err != nil {
		return 0, err
	}
	return c.chat.Send(ctx, text)
}

// Ask отправляет вопрос и ждёт ответ.
func (c *Conversation) Ask(ctx context.Context, prompt string) (string, error) {
	if _, err := c.Send(ctx, prompt); err != nil {
		return "", err
	}
	return c.Await(ctx)
}

// Await ждёт ответ на последний заданный вопрос.
func (c *Conversation) Await(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch c.state {
	case Closed:
		err := c.cause
		c.mu.Unlock()
		if err == nil {
			err = faults.ErrCancelled
		}
		return "", err
	case Awaiting:
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.state = Awaiting
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case text := <-c.replies:
		c.setState(Open)
		if strings.EqualFold(strings.TrimSpace(text), CancelCommand) {
			c.close(faults.ErrCancelled, false)
			return "", faults.ErrCancelled
		}
		return text, nil
	case <-c.done:
		return "", c.Err()
	case <-timer.C:
		if c.close(faults.ErrTimeout, false) {
			// Уведомление — best-effort: контекст флоу может быть уже отменён.
			_, _ = c.chat.Send(context.WithoutCancel(ctx), TimeoutNotice)
		}
		return "", faults.ErrTimeout
	case <-ctx.Done():
		c.setState(Open)
		c.drain()
		return "", ctx.Err()
	}
}

// Deliver передаёт входящий текст ожидающему вопросу. Возвращает false, если
// диалог ничего не ждёт и текст ему не предназначен.
//
// Принятый ответ сразу возвращает автомат в Open: на один вопрос принимается
// ровно один ответ, следующий ждёт нового Await.
func (c *Conversation) Deliver(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Awaiting {
		return false
	}
	select {
	case c.replies <- text:
		c.state = Open
		return true
	default:
		return false
	}
}

// drain выбрасывает ответ, принятый уже после отмены ожидания.
func (c *Conversation) drain() {
	select {
	case <-c.replies:
	default:
	}
}

// Cancel отменяет диалог извне: ожидающий Ask получит ErrCancelled.
func (c *Conversation) Cancel() {
	c.close(faults.ErrCancelled, true)
}

// Close штатно завершает диалог по окончании флоу.
func (c *Conversation) Close() {
	c.close(nil, false)
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Closed {
		c.state = s
	}
}

// close переводит автомат в Closed; возвращает false, если он уже был закрыт.
func (c *Conversation) close(cause error, external bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	c.state = Closed
	c.cause = cause
	c.external = external
	close(c.done)
	return true
}
