package flows

import (
	"context"
	"fmt"

	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/session"
)

// Callback-данные кнопок главного меню.
const (
	ActionUserMode  = "user_mode"
	ActionAdminMode = "admin_mode"
	ActionHelp      = "help"
)

const (
	StartHeader  = "⚡ Hi! Welcome to Telegram Mega Cleaner Bot!"
	CancelHeader = "Operation cancelled. Choose a mode:"
	NudgeHeader  = "Please choose a mode from the buttons below:"

	welcomeFormat = "👋 Welcome %s!\n"
	menuBody      = "\n🔧 Choose an operation mode:\n\n" +
		"• User Mode: Use your own API credentials\n" +
		"• Admin Mode: I must be admin in target channel\n\n" +
		"Type /cancel anytime to return here"

	HelpText = "🆘 Help Menu\n\n" +
		"• User Mode: Use your own API credentials for full access\n" +
		"• Admin Mode: Requires bot admin rights in channel\n\n" +
		"⚠️ Always backup important data before deletion!"
)

// User — отправитель события.
type User struct {
	ID        int64
	FirstName string
}

// MenuButtons — раскладка кнопок главного меню.
func MenuButtons() [][]conversation.Button {
	return [][]conversation.Button{
		{
			{Text: "User Mode", Data: ActionUserMode},
			{Text: "Admin Mode", Data: ActionAdminMode},
		},
		{
			{Text: "Help", Data: ActionHelp},
		},
	}
}

// MenuText собирает текст меню. Пустой header заменяется приветствием по имени.
func MenuText(user User, header string) string {
	if header == "" {
		header = fmt.Sprintf(welcomeFormat, user.FirstName)
	}
	return header + menuBody
}

// ShowMenu отправляет главное меню и переводит пользователя в main_menu.
func ShowMenu(ctx context.Context, reg *session.Registry, chat conversation.Chat, user User, header string) error {
	if _, err := chat.SendMenu(ctx, MenuText(user, header), MenuButtons()); err != nil {
		return err
	}
	reg.SetStage(user.ID, session.StageMainMenu)
	return nil
}
