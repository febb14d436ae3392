// Package backend описывает возможности мессенджера, нужные доменным флоу,
// в виде непрозрачных интерфейсов. Реализация поверх gotd/td живёт в
// internal/adapters/telegram/mtproto; в тестах используются фейки.
//
// Основной клиент бота и вторичная пользовательская сессия предоставляют один
// и тот же Client: различается лишь источник полномочий на удаление.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPasswordNeeded — аккаунт защищён 2FA, после кода нужен пароль.
var ErrPasswordNeeded = errors.New("two-factor password required")

// Channel — разрешённый канал. Конкретный тип принадлежит адаптеру.
type Channel interface {
	// ChatID — исходный идентификатор в форме Bot API (-100...).
	ChatID() int64
	Title() string
}

// Message — элемент ленивой последовательности сообщений канала.
type Message struct {
	ID int
}

// MessageIterator — конечная, не перезапускаемая последовательность сообщений.
type MessageIterator interface {
	Next(ctx context.Context) bool
	Value() Message
	Err() error
}

// Permissions — права текущего аккаунта в канале.
type Permissions struct {
	IsAdmin        bool
	IsCreator      bool
	DeleteMessages bool
}

// CanPurge — может ли аккаунт удалять чужие сообщения канала.
func (p Permissions) CanPurge() bool {
	return p.IsCreator || (p.IsAdmin && p.DeleteMessages)
}

// Client — операции над каналами, общие для бота и пользовательской сессии.
type Client interface {
	ResolveChannel(ctx context.Context, chatID int64) (Channel, error)
	SelfPermissions(ctx context.Context, ch Channel) (Permissions, error)
	Messages(ctx context.Context, ch Channel) (MessageIterator, error)
	DeleteMessage(ctx context.Context, ch Channel, msg Message) error
}

// SentCode — результат запроса кода входа.
type SentCode struct {
	Hash string
	// ViaApp — код пришёл в приложение Telegram, а не SMS/звонком.
	ViaApp bool
	// Authorized — сервер авторизовал сессию сразу, код не нужен.
	Authorized bool
}

// Session — вторичное MTProto-подключение с учётными данными пользователя.
// Disconnect обязан вызываться на каждом пути выхода и быть идемпотентным.
type Session interface {
	Authorized(ctx context.Context) (bool, error)
	SendCode(ctx context.Context, phone string) (SentCode, error)
	SignIn(ctx context.Context, phone, code, codeHash string) error
	Password(ctx context.Context, password string) error
	Client() Client
	Disconnect() error
}

// Connector открывает свежие вторичные подключения.
type Connector interface {
	Connect(ctx context.Context, appID int, appHash string) (Session, error)
}

// FloodWaitError — сервер требует паузу перед следующими запросами.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

func (e *FloodWaitError) Unwrap() error { return e.Err }

// AsFloodWait извлекает длительность обязательной паузы из цепочки ошибок.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}
