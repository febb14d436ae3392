// Package signin проводит вход во вторичную пользовательскую сессию:
// подключение с пользовательскими API-ключами, запрос кода, ввод кода в
// диалоге и, при включённой 2FA, ввод облачного пароля.
//
// Полученная сессия принадлежит вызывающему флоу. На любом пути ошибки
// Authenticate сам закрывает подключение до возврата.
package signin

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/validate"
	"tg-channel-cleaner/internal/infra/logger"
)

const (
	codePromptFormat = "Enter the 5-digit code received via %s (format: 1 2 3 4 5):"
	passwordPrompt   = "🔑 Enter your 2FA password:"
)

// Credentials — транзитные учётные данные пользовательского режима.
// Живут только внутри одного запуска флоу.
type Credentials struct {
	AppID     int
	AppHash   string
	Phone     string
	ChannelID int64
}

// Authenticate открывает свежее подключение через connector и доводит его до
// авторизованного состояния, общаясь с пользователем через conv.
func Authenticate(
	ctx context.Context,
	conv *conversation.Conversation,
	connector backend.Connector,
	creds Credentials,
) (_ backend.Session, err error) {
	sess, err := connector.Connect(ctx, creds.AppID, creds.AppHash)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	defer func() {
		if err == nil {
			return
		}
		if derr := sess.Disconnect(); derr != nil {
			logger.Warn("secondary session disconnect failed", zap.Error(derr))
		}
	}()

	authorized, err := sess.Authorized(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auth status")
	}
	if authorized {
		return sess, nil
	}

	sent, err := sess.SendCode(ctx, creds.Phone)
	if err != nil {
		return nil, err
	}
	if sent.Authorized {
		return sess, nil
	}

	hint := "Telegram message"
	if sent.ViaApp {
		hint = "code"
	}
	reply, err := conv.Ask(ctx, fmt.Sprintf(codePromptFormat, hint))
	if err != nil {
		return nil, err
	}
	code, err := validate.LoginCode(reply)
	if err != nil {
		return nil, err
	}

	err = sess.SignIn(ctx, creds.Phone, code, sent.Hash)
	if errors.Is(err, backend.ErrPasswordNeeded) {
		var password string
		password, err = conv.Ask(ctx, passwordPrompt)
		if err != nil {
			return nil, err
		}
		err = sess.Password(ctx, password)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("secondary session authorized", zap.Int("app_id", creds.AppID))
	return sess, nil
}
