// Package mtproto реализует backend.Client и backend.Connector поверх gotd/td.
//
// Один и тот же Client обслуживает и аккаунт бота (admin mode), и вторичную
// пользовательскую сессию (user mode). Отличается только способ перечисления
// сообщений: пользователь читает историю через messages.getHistory, а боту
// этот метод недоступен, поэтому он сканирует диапазон ID вниз от свежего
// служебного сообщения-зонда.
package mtproto

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/messages"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/infra/logger"
	telegramruntime "tg-channel-cleaner/internal/infra/telegram/runtime"
)

const (
	historyBatchSize = 100
	scanWindow       = 100
	probeText        = "🧹"
)

// ChannelResolver находит канал с access_hash по MTProto-ID.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, channelID int64) (*tg.Channel, error)
}

// ChannelResolverFunc — адаптер функции к ChannelResolver.
type ChannelResolverFunc func(ctx context.Context, channelID int64) (*tg.Channel, error)

func (f ChannelResolverFunc) ResolveChannel(ctx context.Context, channelID int64) (*tg.Channel, error) {
	return f(ctx, channelID)
}

type listing int

const (
	listHistory listing = iota
	listProbeScan
)

// Client — операции над каналами через raw API.
type Client struct {
	api      *tg.Client
	resolver ChannelResolver
	listing  listing
}

var _ backend.Client = (*Client)(nil)

// NewUserClient — клиент пользовательской сессии: история через getHistory.
func NewUserClient(api *tg.Client, resolver ChannelResolver) *Client {
	return &Client{api: api, resolver: resolver, listing: listHistory}
}

// NewBotClient — клиент аккаунта бота: перебор ID от зонда вниз.
func NewBotClient(api *tg.Client, resolver ChannelResolver) *Client {
	return &Client{api: api, resolver: resolver, listing: listProbeScan}
}

// ResolveChannel разрешает chat_id формы Bot API в канал.
func (c *Client) ResolveChannel(ctx context.Context, chatID int64) (backend.Channel, error) {
	channelID, err := ChannelIDFromChatID(chatID)
	if err != nil {
		return nil, err
	}
	raw, err := c.resolver.ResolveChannel(ctx, channelID)
	if err != nil {
		return nil, WrapRPC("resolve channel", err)
	}
	if raw == nil {
		return nil, errors.Errorf("channel %d not found", channelID)
	}
	return newChannel(chatID, raw), nil
}

// SelfPermissions запрашивает участие текущего аккаунта в канале.
// USER_NOT_PARTICIPANT означает отсутствие каких-либо прав, а не сбой.
func (c *Client) SelfPermissions(ctx context.Context, ch backend.Channel) (backend.Permissions, error) {
	channel, err := asChannel(ch)
	if err != nil {
		return backend.Permissions{}, err
	}

	res, err := c.api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     channel.Input(),
		Participant: &tg.InputPeerSelf{},
	})
	if err != nil {
		if tgerr.Is(err, "USER_NOT_PARTICIPANT") {
			return backend.Permissions{}, nil
		}
		return backend.Permissions{}, WrapRPC("get participant", err)
	}
	return permissionsOf(res.Participant), nil
}

func permissionsOf(p tg.ChannelParticipantClass) backend.Permissions {
	switch v := p.(type) {
	case *tg.ChannelParticipantCreator:
		return backend.Permissions{IsAdmin: true, IsCreator: true, DeleteMessages: true}
	case *tg.ChannelParticipantAdmin:
		return backend.Permissions{IsAdmin: true, DeleteMessages: v.AdminRights.DeleteMessages}
	default:
		return backend.Permissions{}
	}
}

// Messages возвращает ленивую последовательность сообщений канала от новых к старым.
func (c *Client) Messages(ctx context.Context, ch backend.Channel) (backend.MessageIterator, error) {
	channel, err := asChannel(ch)
	if err != nil {
		return nil, err
	}

	if c.listing == listHistory {
		it := query.NewQuery(c.api).Messages().
			GetHistory(channel.InputPeer()).
			BatchSize(historyBatchSize).
			Iter()
		return &historyIterator{it: it}, nil
	}

	top, err := c.probeTop(ctx, channel)
	if err != nil {
		return nil, err
	}
	logger.Debug("channel scan starts", zap.Int64("chat_id", channel.ChatID()), zap.Int("top_id", top))
	return newScanIterator(top, func(ctx context.Context, ids []int) ([]int, error) {
		return c.existing(ctx, channel, ids)
	}), nil
}

// DeleteMessage удаляет одно сообщение канала.
func (c *Client) DeleteMessage(ctx context.Context, ch backend.Channel, msg backend.Message) error {
	channel, err := asChannel(ch)
	if err != nil {
		return err
	}
	_, err = c.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
		Channel: channel.Input(),
		ID:      []int{msg.ID},
	})
	return WrapRPC("delete message", err)
}

// probeTop публикует беззвучный зонд, чтобы узнать верхнюю границу ID, и
// сразу удаляет его. Все сообщения канала лежат ниже зонда.
func (c *Client) probeTop(ctx context.Context, channel *Channel) (int, error) {
	resp, err := c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     channel.InputPeer(),
		Message:  probeText,
		RandomID: telegramruntime.RandomID(),
		Silent:   true,
	})
	if err != nil {
		return 0, WrapRPC("send probe", err)
	}
	probeID, ok := SentMessageID(resp)
	if !ok {
		return 0, errors.New("probe message id not found in response")
	}
	if err := c.DeleteMessage(ctx, channel, backend.Message{ID: probeID}); err != nil {
		logger.Warn("probe message not deleted", zap.Int("id", probeID), zap.Error(err))
	}
	return probeID - 1, nil
}

// existing возвращает ID из ids, под которыми в канале есть сообщения.
func (c *Client) existing(ctx context.Context, channel *Channel, ids []int) ([]int, error) {
	input := make([]tg.InputMessageClass, 0, len(ids))
	for _, id := range ids {
		input = append(input, &tg.InputMessageID{ID: id})
	}
	res, err := c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel.Input(),
		ID:      input,
	})
	if err != nil {
		return nil, WrapRPC("get messages", err)
	}

	var msgs []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesChannelMessages:
		msgs = v.Messages
	case *tg.MessagesMessages:
		msgs = v.Messages
	case *tg.MessagesMessagesSlice:
		msgs = v.Messages
	}

	found := make([]int, 0, len(msgs))
	for _, m := range msgs {
		if _, empty := m.(*tg.MessageEmpty); empty {
			continue
		}
		found = append(found, m.GetID())
	}
	return found, nil
}

// historyIterator адаптирует итератор query/messages к backend.MessageIterator.
type historyIterator struct {
	it *messages.Iterator
}

func (h *historyIterator) Next(ctx context.Context) bool { return h.it.Next(ctx) }

func (h *historyIterator) Value() backend.Message {
	return backend.Message{ID: h.it.Value().Msg.GetID()}
}

func (h *historyIterator) Err() error { return WrapRPC("get history", h.it.Err()) }

type fetchFunc func(ctx context.Context, ids []int) ([]int, error)

// scanIterator обходит ID от top до 1 окнами по scanWindow и отдаёт только
// существующие сообщения.
type scanIterator struct {
	next  int
	fetch fetchFunc
	buf   []int
	cur   int
	err   error
}

func newScanIterator(top int, fetch fetchFunc) *scanIterator {
	return &scanIterator{next: top, fetch: fetch}
}

func (s *scanIterator) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	for len(s.buf) == 0 {
		if s.next < 1 {
			return false
		}
		if err := ctx.Err(); err != nil {
			s.err = err
			return false
		}
		low := max(s.next-scanWindow+1, 1)
		ids := make([]int, 0, s.next-low+1)
		for id := s.next; id >= low; id-- {
			ids = append(ids, id)
		}
		found, err := s.fetch(ctx, ids)
		if err != nil {
			s.err = err
			return false
		}
		s.buf = found
		s.next = low - 1
	}
	s.cur, s.buf = s.buf[0], s.buf[1:]
	return true
}

func (s *scanIterator) Value() backend.Message { return backend.Message{ID: s.cur} }

func (s *scanIterator) Err() error { return s.err }
