package botchat

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/dispatch"
	"tg-channel-cleaner/internal/domain/flows"
	"tg-channel-cleaner/internal/infra/concurrency"
	"tg-channel-cleaner/internal/infra/logger"
	"tg-channel-cleaner/internal/infra/pr"
)

// API — вызовы Telegram, которые нужны транспорту бота.
type API interface {
	Sender
	CallbackAnswerer
}

// UserResolver достаёт InputPeer пользователя из кэша пиров, когда апдейт
// пришёл без сущностей.
type UserResolver interface {
	ResolveUser(ctx context.Context, userID int64) (tg.InputPeerClass, error)
}

// Router переводит апдейты Telegram в вызовы диспетчера.
type Router struct {
	api      API
	users    UserResolver
	dispatch *dispatch.Dispatcher
	dedup    *concurrency.Deduplicator
}

// NewRouter создаёт роутер. dedup может быть nil: тогда повторы не подавляются.
func NewRouter(api API, users UserResolver, d *dispatch.Dispatcher, dedup *concurrency.Deduplicator) *Router {
	return &Router{api: api, users: users, dispatch: d, dedup: dedup}
}

func (r *Router) repeated(key string) bool {
	return r.dedup != nil && r.dedup.Seen(key)
}

// Register подписывает роутер на личные сообщения и нажатия кнопок.
func (r *Router) Register(d tg.UpdateDispatcher) {
	d.OnNewMessage(r.OnNewMessage)
	d.OnBotCallbackQuery(r.OnBotCallbackQuery)
}

// OnNewMessage обрабатывает входящее личное сообщение.
// Ошибки логируются: менеджер апдейтов не должен останавливаться из-за одного пользователя.
func (r *Router) OnNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	from, ok := msg.PeerID.(*tg.PeerUser)
	if !ok || r.repeated(fmt.Sprintf("msg:%d:%d", from.UserID, msg.ID)) {
		return nil
	}
	dump("new message", u)

	user, peer, err := r.user(ctx, e, from.UserID)
	if err != nil {
		logger.Warn("message from unknown peer dropped", zap.Int64("user", from.UserID), zap.Error(err))
		return nil
	}
	if err := r.dispatch.Message(ctx, user, NewChat(r.api, peer), msg.Message); err != nil {
		logger.Error("message handling failed", zap.Int64("user", user.ID), zap.Error(err))
	}
	return nil
}

// OnBotCallbackQuery обрабатывает нажатие inline-кнопки.
func (r *Router) OnBotCallbackQuery(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
	if r.repeated(fmt.Sprintf("cb:%d", u.QueryID)) {
		return nil
	}
	dump("callback query", u)

	user, peer, err := r.user(ctx, e, u.UserID)
	if err != nil {
		logger.Warn("callback from unknown peer dropped", zap.Int64("user", u.UserID), zap.Error(err))
		return nil
	}
	cb := dispatch.Callback{
		User:   user,
		Chat:   NewChat(r.api, peer),
		MsgID:  u.MsgID,
		Data:   string(u.Data),
		Answer: NewAnswer(r.api, u.QueryID),
	}
	if err := r.dispatch.Callback(ctx, cb); err != nil {
		logger.Error("callback handling failed", zap.Int64("user", user.ID), zap.Error(err))
	}
	return nil
}

// user собирает данные отправителя: из сущностей апдейта, иначе из кэша пиров.
func (r *Router) user(ctx context.Context, e tg.Entities, userID int64) (flows.User, tg.InputPeerClass, error) {
	if u, ok := e.Users[userID]; ok && u != nil {
		return flows.User{ID: userID, FirstName: u.FirstName}, u.AsInputPeer(), nil
	}
	if r.users == nil {
		return flows.User{}, nil, errors.Errorf("user %d not in update entities", userID)
	}
	peer, err := r.users.ResolveUser(ctx, userID)
	if err != nil {
		return flows.User{}, nil, err
	}
	return flows.User{ID: userID}, peer, nil
}

func dump(what string, v any) {
	if logger.IsDebugEnabled() {
		logger.Debug(what, zap.String("update", pr.Pf(v)))
	}
}
