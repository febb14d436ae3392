package flows

import (
	"context"
	"fmt"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/domain/validate"
)

const (
	adminIntro = "🛡️ Admin Mode Setup\n\n" +
		"Requirements:\n" +
		"1. Add me as admin in the channel\n" +
		"2. Grant delete messages permission\n\n" +
		"Type /cancel to abort"

	adminConfirmFormat = "⚠️ WARNING: This will delete ALL messages in %s\n\n" +
		"Type CONFIRM ADMIN DELETE to proceed:"
	AdminConfirmPhrase = "CONFIRM ADMIN DELETE"

	adminStartText  = "⏳ Starting admin deletion..."
	adminDoneFormat = "✅ Deleted %d messages using admin privileges!"
	adminFailFormat = "❌ Admin mode error: %s"
)

// RunAdminMode очищает канал правами самого бота: канал → проверка прав →
// подтверждение → удаление. Вторичная сессия не открывается.
func (c *Controller) RunAdminMode(ctx context.Context, user User, chat conversation.Chat) Outcome {
	return c.run(ctx, user, chat, ActionAdminMode, adminFailFormat, c.adminSteps)
}

func (c *Controller) adminSteps(ctx context.Context, conv *conversation.Conversation) error {
	if _, err := conv.Send(ctx, adminIntro); err != nil {
		return err
	}

	reply, err := ask(ctx, conv, channelPrompt)
	if err != nil {
		return err
	}
	chatID, err := validate.ChannelID(reply)
	if err != nil {
		return err
	}

	ch, err := c.checkAdminRights(ctx, chatID)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(adminConfirmFormat, channelLabel(ch))
	if err := confirm(ctx, conv, prompt, AdminConfirmPhrase); err != nil {
		return err
	}

	return c.purgeWithProgress(ctx, conv, c.bot, chatID, adminStartText, adminDoneFormat)
}

// checkAdminRights убеждается, что бот — администратор канала с правом
// удаления сообщений. Создатель канала проходит проверку всегда.
func (c *Controller) checkAdminRights(ctx context.Context, chatID int64) (backend.Channel, error) {
	ch, err := c.bot.ResolveChannel(ctx, chatID)
	if err != nil {
		return nil, &faults.ChannelAccessError{
			ChannelID: chatID,
			Reason:    "Channel not found/access denied",
			Err:       err,
		}
	}

	perms, err := c.bot.SelfPermissions(ctx, ch)
	if err != nil {
		return nil, &faults.ChannelAccessError{
			ChannelID: chatID,
			Reason:    "Channel not found/access denied",
			Err:       err,
		}
	}
	if perms.CanPurge() {
		return ch, nil
	}

	missing := "delete messages"
	if !perms.IsAdmin {
		missing = "admin status, delete messages"
	}
	return nil, &faults.PermissionError{ChannelID: chatID, Missing: missing}
}

func channelLabel(ch backend.Channel) string {
	if t := ch.Title(); t != "" {
		return t
	}
	return fmt.Sprintf("channel %d", ch.ChatID())
}
