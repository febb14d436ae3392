package mtproto

import "github.com/gotd/td/tg"

// SentMessageID извлекает ID отправленного сообщения из ответа
// messages.sendMessage. Для личных чатов сервер отвечает коротким
// updateShortSentMessage, для каналов — полным Updates с updateMessageID.
func SentMessageID(resp tg.UpdatesClass) (int, bool) {
	switch u := resp.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, true
	case *tg.Updates:
		return messageIDFrom(u.Updates)
	case *tg.UpdatesCombined:
		return messageIDFrom(u.Updates)
	default:
		return 0, false
	}
}

func messageIDFrom(updates []tg.UpdateClass) (int, bool) {
	for _, upd := range updates {
		if u, ok := upd.(*tg.UpdateMessageID); ok {
			return u.ID, true
		}
	}
	for _, upd := range updates {
		switch u := upd.(type) {
		case *tg.UpdateNewMessage:
			return u.Message.GetID(), true
		case *tg.UpdateNewChannelMessage:
			return u.Message.GetID(), true
		}
	}
	return 0, false
}
