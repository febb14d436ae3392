package mtproto

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/ratelimit"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/infra/logger"
	"tg-channel-cleaner/internal/infra/telegram/peersmgr"
)

// ConnectorOptions — параметры вторичных подключений.
type ConnectorOptions struct {
	TestDC bool
	// RPS ограничивает темп запросов одной сессии; 0 — без ограничения.
	RPS    int
	Device telegram.DeviceConfig
}

// Connector открывает вторичные MTProto-сессии с учётными данными пользователя.
// Сессия живёт только в памяти и теряется после Disconnect.
//
// Middleware floodwait здесь не ставится: FLOOD_WAIT должен дойти до
// движка удаления, который сам решает, сколько ждать.
type Connector struct {
	opts ConnectorOptions
}

var _ backend.Connector = (*Connector)(nil)

func NewConnector(opts ConnectorOptions) *Connector {
	return &Connector{opts: opts}
}

// Connect поднимает клиента и ждёт готовности соединения.
func (c *Connector) Connect(ctx context.Context, appID int, appHash string) (backend.Session, error) {
	options := telegram.Options{
		SessionStorage: &tdsession.StorageMemory{},
		NoUpdates:      true,
		Device:         c.opts.Device,
	}
	if c.opts.RPS > 0 {
		options.Middlewares = []telegram.Middleware{
			ratelimit.New(rate.Limit(c.opts.RPS), c.opts.RPS),
		}
	}
	if c.opts.TestDC {
		options.DCList = dcs.Test()
	}
	client := telegram.NewClient(appID, appHash, options)

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		logger.Debug("secondary client connected", zap.Int("app_id", appID))
		return &userSession{client: client, cancel: cancel, done: done}, nil
	case err := <-done:
		cancel()
		if err == nil {
			err = errors.New("client stopped before connecting")
		}
		return nil, errors.Wrap(err, "run secondary client")
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}
}

// userSession — подключённый вторичный клиент.
type userSession struct {
	client *telegram.Client
	cancel context.CancelFunc
	done   chan error

	once sync.Once
}

var _ backend.Session = (*userSession)(nil)

func (s *userSession) Authorized(ctx context.Context) (bool, error) {
	status, err := s.client.Auth().Status(ctx)
	if err != nil {
		return false, WrapRPC("auth status", err)
	}
	return status.Authorized, nil
}

func (s *userSession) SendCode(ctx context.Context, phone string) (backend.SentCode, error) {
	sent, err := s.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		if tgerr.Is(err, "PHONE_NUMBER_INVALID") {
			return backend.SentCode{}, faults.Invalid("phone", "Invalid phone number")
		}
		return backend.SentCode{}, WrapRPC("send code", err)
	}

	switch v := sent.(type) {
	case *tg.AuthSentCode:
		_, viaApp := v.Type.(*tg.AuthSentCodeTypeApp)
		return backend.SentCode{Hash: v.PhoneCodeHash, ViaApp: viaApp}, nil
	case *tg.AuthSentCodeSuccess:
		return backend.SentCode{Authorized: true}, nil
	default:
		return backend.SentCode{}, errors.Errorf("unexpected sent code type %T", sent)
	}
}

func (s *userSession) SignIn(ctx context.Context, phone, code, codeHash string) error {
	_, err := s.client.Auth().SignIn(ctx, phone, code, codeHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return backend.ErrPasswordNeeded
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED"):
		return faults.Invalid("code", "Invalid or expired login code")
	}
	var signUp *auth.SignUpRequired
	if errors.As(err, &signUp) {
		return faults.Invalid("phone", "Phone number is not registered in Telegram")
	}
	return WrapRPC("sign in", err)
}

func (s *userSession) Password(ctx context.Context, password string) error {
	if _, err := s.client.Auth().Password(ctx, password); err != nil {
		if errors.Is(err, auth.ErrPasswordInvalid) {
			return faults.Invalid("password", "Invalid 2FA password")
		}
		return WrapRPC("check password", err)
	}
	return nil
}

// Client — операции над каналами от имени пользователя. Каналы ищутся в его
// диалогах: персистентного кэша пиров у вторичной сессии нет.
func (s *userSession) Client() backend.Client {
	api := s.client.API()
	return NewUserClient(api, ChannelResolverFunc(func(ctx context.Context, channelID int64) (*tg.Channel, error) {
		return peersmgr.FindChannel(ctx, api, channelID)
	}))
}

// Disconnect останавливает клиента и ждёт выхода его горутины. Идемпотентен.
func (s *userSession) Disconnect() error {
	s.once.Do(func() {
		s.cancel()
		err := <-s.done
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("secondary client stopped", zap.Error(err))
		}
	})
	return nil
}
