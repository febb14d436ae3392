package peersmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"

	telegramruntime "tg-channel-cleaner/internal/infra/telegram/runtime"
)

const (
	dialogFetchWaitMinMs  = 300
	dialogFetchWaitMaxMs  = 900
	dialogFetchPageLimit  = 100
	dialogFetchZeroOffset = 0
)

var (
	errDialogsNotModified = errors.New("dialogs not modified")

	// ErrChannelNotFound — канала нет среди диалогов аккаунта.
	ErrChannelNotFound = errors.New("channel not found in dialogs")
)

// FindChannel ищет канал среди диалогов аккаунта и возвращает его вместе с
// access_hash. Выгрузка идёт страницами через MessagesGetDialogs с пагинацией по
// (offset_date, offset_id, offset_peer) и останавливается на первой странице,
// где канал найден.
func FindChannel(ctx context.Context, api *tg.Client, channelID int64) (*tg.Channel, error) {
	offsetDate := dialogFetchZeroOffset
	offsetID := dialogFetchZeroOffset
	var offsetPeer tg.InputPeerClass = &tg.InputPeerEmpty{}

	userHashes := make(map[int64]int64)
	channelHashes := make(map[int64]int64)

	for {
		resp, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			OffsetPeer: offsetPeer,
			Limit:      dialogFetchPageLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("MessagesGetDialogs: %w", err)
		}

		batch, err := normalizeDialogsResponse(resp)
		if err != nil {
			if errors.Is(err, errDialogsNotModified) {
				return nil, ErrChannelNotFound
			}
			return nil, err
		}
		if len(batch.Dialogs) == 0 {
			return nil, ErrChannelNotFound
		}

		if ch := channelFromBatch(batch, channelID); ch != nil {
			return ch, nil
		}

		updateHashesFromBatch(batch, userHashes, channelHashes)

		lastDialog := batch.Dialogs[len(batch.Dialogs)-1]
		prevOffsetDate := offsetDate
		prevOffsetID := offsetID

		switch dlg := lastDialog.(type) {
		case *tg.Dialog:
			offsetID = dlg.TopMessage
			offsetDate = messageDate(batch.Messages, dlg.TopMessage)
			offsetPeer = dialogPeerToInput(dlg.Peer, userHashes, channelHashes)
		case *tg.DialogFolder:
			offsetID = dlg.TopMessage
			offsetDate = messageDate(batch.Messages, dlg.TopMessage)
			offsetPeer = dialogPeerToInput(dlg.Peer, userHashes, channelHashes)
		default:
			offsetPeer = &tg.InputPeerEmpty{}
		}

		if offsetDate == dialogFetchZeroOffset {
			offsetDate = prevOffsetDate
		}
		if offsetID == dialogFetchZeroOffset {
			offsetID = prevOffsetID
		}

		if len(batch.Dialogs) < dialogFetchPageLimit {
			return nil, ErrChannelNotFound
		}

		if err := telegramruntime.WaitRandomTimeMs(ctx, dialogFetchWaitMinMs, dialogFetchWaitMaxMs); err != nil {
			return nil, err
		}
	}
}

func channelFromBatch(batch *tg.MessagesDialogs, channelID int64) *tg.Channel {
	for _, entity := range batch.Chats {
		if ch, ok := entity.(*tg.Channel); ok && ch.ID == channelID {
			return ch
		}
	}
	return nil
}

func normalizeDialogsResponse(resp tg.MessagesDialogsClass) (*tg.MessagesDialogs, error) {
	switch data := resp.(type) {
	case *tg.MessagesDialogs:
		return data, nil
	case *tg.MessagesDialogsSlice:
		return &tg.MessagesDialogs{
			Dialogs:  data.Dialogs,
			Messages: data.Messages,
			Chats:    data.Chats,
			Users:    data.Users,
		}, nil
	case *tg.MessagesDialogsNotModified:
		return nil, errDialogsNotModified
	default:
		return nil, fmt.Errorf("unexpected dialogs response: %T", resp)
	}
}

func updateHashesFromBatch(batch *tg.MessagesDialogs, userHashes, channelHashes map[int64]int64) {
	for _, entity := range batch.Users {
		if user, ok := entity.(*tg.User); ok {
			userHashes[user.ID] = user.AccessHash
		}
	}
	for _, entity := range batch.Chats {
		if ch, ok := entity.(*tg.Channel); ok {
			channelHashes[ch.ID] = ch.AccessHash
		}
	}
}

func messageDate(messages []tg.MessageClass, id int) int {
	for _, msg := range messages {
		switch item := msg.(type) {
		case *tg.Message:
			if item.ID == id {
				return item.Date
			}
		case *tg.MessageService:
			if item.ID == id {
				return item.Date
			}
		}
	}
	return dialogFetchZeroOffset
}

func dialogPeerToInput(peer tg.PeerClass, userHashes, channelHashes map[int64]int64) tg.InputPeerClass {
	switch entity := peer.(type) {
	case *tg.PeerUser:
		return &tg.InputPeerUser{UserID: entity.UserID, AccessHash: userHashes[entity.UserID]}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: entity.ChatID}
	case *tg.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: entity.ChannelID, AccessHash: channelHashes[entity.ChannelID]}
	default:
		return &tg.InputPeerEmpty{}
	}
}
