package mtproto

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"tg-channel-cleaner/internal/domain/backend"
)

// botAPIChannelPrefix — сдвиг, которым Bot API кодирует ID каналов: -100xxxxxxxxxx.
const botAPIChannelPrefix int64 = -1000000000000

// ChannelIDFromChatID переводит chat_id в форме Bot API в MTProto-ID канала.
// Для коротких ID пользователи вписывают префикс -100 текстом (-100123456789),
// он отрезается так же. Значения без префикса принимаются как -ID.
func ChannelIDFromChatID(chatID int64) (int64, error) {
	if chatID >= 0 {
		return 0, errors.Errorf("chat id %d is not a channel", chatID)
	}
	if chatID <= botAPIChannelPrefix {
		if id := botAPIChannelPrefix - chatID; id > 0 {
			return id, nil
		}
		return 0, errors.Errorf("chat id %d is not a channel", chatID)
	}
	if rest, ok := strings.CutPrefix(strconv.FormatInt(chatID, 10), "-100"); ok && rest != "" {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return -chatID, nil
}

// ChatIDFromChannelID — обратное преобразование в форму Bot API.
func ChatIDFromChannelID(channelID int64) int64 {
	return botAPIChannelPrefix - channelID
}

// Channel — канал, разрешённый через MTProto, с access_hash.
type Channel struct {
	chatID int64
	raw    *tg.Channel
}

var _ backend.Channel = (*Channel)(nil)

func newChannel(chatID int64, raw *tg.Channel) *Channel {
	return &Channel{chatID: chatID, raw: raw}
}

func (c *Channel) ChatID() int64 { return c.chatID }
func (c *Channel) Title() string { return c.raw.Title }

// Input — InputChannel для вызовов channels.*.
func (c *Channel) Input() *tg.InputChannel {
	return &tg.InputChannel{ChannelID: c.raw.ID, AccessHash: c.raw.AccessHash}
}

// InputPeer — InputPeerChannel для вызовов messages.*.
func (c *Channel) InputPeer() *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: c.raw.ID, AccessHash: c.raw.AccessHash}
}

// asChannel достаёт адаптерный тип из непрозрачного backend.Channel.
func asChannel(ch backend.Channel) (*Channel, error) {
	c, ok := ch.(*Channel)
	if !ok || c == nil || c.raw == nil {
		return nil, errors.Errorf("unexpected channel type %T", ch)
	}
	return c, nil
}
