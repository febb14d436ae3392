package flows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/domain/signin"
	"tg-channel-cleaner/internal/domain/validate"
	"tg-channel-cleaner/internal/infra/logger"
)

const (
	userIntro = "📝 User Mode Setup\n\n" +
		"1. Get API credentials from https://my.telegram.org\n" +
		"2. Enter them below\n\n" +
		"Type /cancel to abort"
	appIDPrompt   = "🔢 Enter your API_ID:"
	appHashPrompt = "🔑 Enter your API_HASH:"
	phonePrompt   = "📱 Enter your phone number (e.g., +12345678901):"

	userConfirmFormat = "⚠️ WARNING: This will delete ALL messages in channel %d\n\n" +
		"Type CONFIRM DELETE to proceed:"
	UserConfirmPhrase = "CONFIRM DELETE"

	userStartText  = "⏳ Starting deletion..."
	userDoneFormat = "✅ Successfully deleted %d messages!"
	userFailFormat = "❌ Error: %s"
)

// RunUserMode проводит пользователя через очистку канала его собственной
// сессией: ключи API → телефон → канал → вход → проверка доступа →
// подтверждение → удаление. Блокирует до завершения сценария.
func (c *Controller) RunUserMode(ctx context.Context, user User, chat conversation.Chat) Outcome {
	return c.run(ctx, user, chat, ActionUserMode, userFailFormat, c.userSteps)
}

func (c *Controller) userSteps(ctx context.Context, conv *conversation.Conversation) error {
	if _, err := conv.Send(ctx, userIntro); err != nil {
		return err
	}

	creds, err := collectCredentials(ctx, conv)
	if err != nil {
		return err
	}

	sess, err := signin.Authenticate(ctx, conv, c.connector, creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			logger.Warn("secondary session disconnect failed", zap.Error(err))
		}
	}()

	client := sess.Client()
	if _, err := client.ResolveChannel(ctx, creds.ChannelID); err != nil {
		return &faults.ChannelAccessError{
			ChannelID: creds.ChannelID,
			Reason:    "Channel access denied",
			Err:       err,
		}
	}

	prompt := fmt.Sprintf(userConfirmFormat, creds.ChannelID)
	if err := confirm(ctx, conv, prompt, UserConfirmPhrase); err != nil {
		return err
	}

	return c.purgeWithProgress(ctx, conv, client, creds.ChannelID, userStartText, userDoneFormat)
}

// collectCredentials опрашивает ключи API, телефон и канал. Первый же
// некорректный ответ прерывает сценарий без повторного вопроса.
func collectCredentials(ctx context.Context, conv *conversation.Conversation) (signin.Credentials, error) {
	var creds signin.Credentials

	reply, err := ask(ctx, conv, appIDPrompt)
	if err != nil {
		return creds, err
	}
	if creds.AppID, err = validate.AppID(reply); err != nil {
		return creds, err
	}

	if reply, err = ask(ctx, conv, appHashPrompt); err != nil {
		return creds, err
	}
	if err = validate.AppHash(reply); err != nil {
		return creds, err
	}
	creds.AppHash = reply

	if reply, err = ask(ctx, conv, phonePrompt); err != nil {
		return creds, err
	}
	if !validate.Phone(reply) {
		return creds, faults.Invalid("phone", "Invalid phone number")
	}
	creds.Phone = reply

	if reply, err = ask(ctx, conv, channelPrompt); err != nil {
		return creds, err
	}
	if creds.ChannelID, err = validate.ChannelID(reply); err != nil {
		return creds, err
	}

	return creds, nil
}
