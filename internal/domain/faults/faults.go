// Package faults — таксономия ошибок диалогов очистки каналов.
//
//   - ValidationError — некорректный ввод пользователя; прерывает текущий флоу;
//   - ChannelAccessError — канал не найден, приватный или недоступен;
//   - PermissionError — у бота нет прав администратора с удалением сообщений;
//   - ErrCancelled — штатная отмена (/cancel, несовпадение подтверждения), не сбой;
//   - ErrTimeout — диалог брошен пользователем (истекло окно неактивности).
//
// Текст ValidationError/ChannelAccessError/PermissionError показывается пользователю как есть.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled — флоу отменён пользователем.
	ErrCancelled = errors.New("operation cancelled")
	// ErrTimeout — ответ не пришёл за окно неактивности диалога.
	ErrTimeout = errors.New("dialog timed out")
)

// ValidationError — ошибка формата пользовательского ввода.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid — короткий конструктор ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ChannelAccessError — канал не удалось получить.
type ChannelAccessError struct {
	ChannelID int64
	Reason    string
	Err       error
}

func (e *ChannelAccessError) Error() string {
	return e.Reason
}

func (e *ChannelAccessError) Unwrap() error { return e.Err }

// PermissionError — у бота недостаточно прав в канале.
type PermissionError struct {
	ChannelID int64
	Missing   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("Missing admin permissions: %s", e.Missing)
}

// IsCancelled сообщает, что err — штатная отмена, а не сбой.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout сообщает, что диалог брошен по неактивности.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUserFacing сообщает, что текст ошибки предназначен пользователю дословно.
func IsUserFacing(err error) bool {
	var (
		v *ValidationError
		c *ChannelAccessError
		p *PermissionError
	)
	return errors.As(err, &v) || errors.As(err, &c) || errors.As(err, &p)
}
