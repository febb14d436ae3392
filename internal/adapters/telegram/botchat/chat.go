// Package botchat — транспорт бота поверх MTProto: личный чат с пользователем
// (conversation.Chat), ответы на callback-запросы и маршрутизация апдейтов
// в диспетчер.
package botchat

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tg-channel-cleaner/internal/adapters/telegram/mtproto"
	"tg-channel-cleaner/internal/domain/conversation"
	telegramruntime "tg-channel-cleaner/internal/infra/telegram/runtime"
)

// Sender — подмножество tg.Client, нужное чату.
type Sender interface {
	MessagesSendMessage(ctx context.Context, request *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
	MessagesEditMessage(ctx context.Context, request *tg.MessagesEditMessageRequest) (tg.UpdatesClass, error)
}

// Chat — личный чат бота с одним пользователем.
type Chat struct {
	api  Sender
	peer tg.InputPeerClass
}

var _ conversation.Chat = (*Chat)(nil)

func NewChat(api Sender, peer tg.InputPeerClass) *Chat {
	return &Chat{api: api, peer: peer}
}

func (c *Chat) Send(ctx context.Context, text string) (int, error) {
	return c.send(ctx, text, nil)
}

func (c *Chat) SendMenu(ctx context.Context, text string, rows [][]conversation.Button) (int, error) {
	return c.send(ctx, text, InlineKeyboard(rows))
}

func (c *Chat) send(ctx context.Context, text string, markup tg.ReplyMarkupClass) (int, error) {
	resp, err := c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:        c.peer,
		Message:     text,
		RandomID:    telegramruntime.RandomID(),
		NoWebpage:   true,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, mtproto.WrapRPC("send message", err)
	}
	id, ok := mtproto.SentMessageID(resp)
	if !ok {
		return 0, errors.New("sent message id not found in response")
	}
	return id, nil
}

// Edit заменяет текст сообщения. Повтор того же текста не считается ошибкой.
func (c *Chat) Edit(ctx context.Context, msgID int, text string) error {
	_, err := c.api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:      c.peer,
		ID:        msgID,
		Message:   text,
		NoWebpage: true,
	})
	if err != nil && tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return nil
	}
	return mtproto.WrapRPC("edit message", err)
}

// InlineKeyboard собирает inline-клавиатуру из строк кнопок.
func InlineKeyboard(rows [][]conversation.Button) *tg.ReplyInlineMarkup {
	markup := &tg.ReplyInlineMarkup{Rows: make([]tg.KeyboardButtonRow, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]tg.KeyboardButtonClass, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, &tg.KeyboardButtonCallback{Text: b.Text, Data: []byte(b.Data)})
		}
		markup.Rows = append(markup.Rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	return markup
}

// CallbackAnswerer — подмножество tg.Client для ответа на нажатие кнопки.
type CallbackAnswerer interface {
	MessagesSetBotCallbackAnswer(ctx context.Context, request *tg.MessagesSetBotCallbackAnswerRequest) (bool, error)
}

// Answer подтверждает один callback-запрос.
type Answer struct {
	api     CallbackAnswerer
	queryID int64
}

func NewAnswer(api CallbackAnswerer, queryID int64) *Answer {
	return &Answer{api: api, queryID: queryID}
}

// Answer закрывает «часики» на кнопке; непустой text показывается
// всплывающим уведомлением (alert) или тостом.
func (a *Answer) Answer(ctx context.Context, text string, alert bool) error {
	_, err := a.api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: a.queryID,
		Message: text,
		Alert:   alert,
	})
	return mtproto.WrapRPC("answer callback", err)
}
