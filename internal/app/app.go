// Package app — верхний уровень сборки бота-чистильщика каналов.
// Здесь связываются конфигурация, MTProto-клиент бота (gotd/telegram), менеджер
// апдейтов, кэш пиров и доменные сервисы (диспетчер, сценарии, движок удаления).
// Отсюда стартует цикл обработки событий и обеспечивается корректный shutdown.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/ratelimit"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	tgupdates "github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"tg-channel-cleaner/internal/adapters/telegram/botchat"
	"tg-channel-cleaner/internal/adapters/telegram/mtproto"
	"tg-channel-cleaner/internal/domain/dispatch"
	"tg-channel-cleaner/internal/domain/flows"
	"tg-channel-cleaner/internal/domain/purge"
	"tg-channel-cleaner/internal/domain/session"
	"tg-channel-cleaner/internal/infra/clock"
	"tg-channel-cleaner/internal/infra/concurrency"
	"tg-channel-cleaner/internal/infra/config"
	"tg-channel-cleaner/internal/infra/logger"
	"tg-channel-cleaner/internal/infra/storage"
	"tg-channel-cleaner/internal/infra/telegram/peersmgr"
	tgsession "tg-channel-cleaner/internal/infra/telegram/session"
	"tg-channel-cleaner/internal/support/version"
)

// lazyUpdateHandler позволяет отложить установку реального обработчика
// апдейтов: менеджеру апдейтов нужен клиент, а клиенту — обработчик.
type lazyUpdateHandler struct {
	mu      sync.RWMutex
	handler telegram.UpdateHandler
}

func (h *lazyUpdateHandler) Handle(ctx context.Context, u tg.UpdatesClass) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.handler != nil {
		return h.handler.Handle(ctx, u)
	}
	return nil
}

func (h *lazyUpdateHandler) set(realHandler telegram.UpdateHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = realHandler
}

// dedupWindow — окно, в котором повторно пришедший апдейт считается дублем.
const dedupWindow = 10 * time.Minute

// App агрегирует зависимости бота и управляет их связью.
type App struct {
	cfg        config.EnvConfig
	mainCtx    context.Context    // Контекст жизненного цикла приложения.
	mainCancel context.CancelFunc // Инициирует отмену mainCtx.
	runner     *Runner
}

// NewApp создаёт каркас приложения. Сборка выполняется в Run().
func NewApp(mainCtx context.Context, mainCancel context.CancelFunc, cfg config.EnvConfig) *App {
	return &App{
		cfg:        cfg,
		mainCtx:    mainCtx,
		mainCancel: mainCancel,
	}
}

// device — паспорт устройства для основной и вторичных сессий.
func device() telegram.DeviceConfig {
	return telegram.DeviceConfig{
		DeviceModel:   "Channel Cleaner Bot",
		SystemVersion: "linux",
		AppVersion:    version.Version,
	}
}

// botMiddlewares — цепочка middleware клиента бота. FLOOD_WAIT не ретраится
// автоматически и доходит до вызывающего: движок удаления пропускает такое
// сообщение, а вход бота повторяет Runner.
func botMiddlewares(rps int) []telegram.Middleware {
	return []telegram.Middleware{
		ratelimit.New(
			rate.Limit(rps),
			rps*2, //nolint:mnd // burst = 2*rate
		),
	}
}

// Run собирает клиента, менеджер апдейтов и доменные сервисы, затем передаёт
// управление Runner. Блокируется до остановки приложения.
func (a *App) Run() error {
	logger.Info("Cleaner bot initializing...", zap.String("version", version.Version))

	updDispatcher := tg.NewUpdateDispatcher()
	lazyHandler := &lazyUpdateHandler{}

	// 1) Опции MTProto-клиента бота.
	options := telegram.Options{
		SessionStorage: &tgsession.FileStorage{Path: a.cfg.SessionFile},
		UpdateHandler:  lazyHandler,
		Middlewares:    botMiddlewares(a.cfg.ThrottleRPS),
		OnDead: func() {
			logger.Warn("MTProto connection is dead, reconnecting")
		},
		Device: device(),
	}
	if a.cfg.TestDC {
		options.DCList = dcs.Test()
	}

	client := telegram.NewClient(a.cfg.APIID, a.cfg.APIHash, options)

	// 2) Кэш пиров и состояние апдейтов в bbolt.
	peersSvc, err := peersmgr.New(client.API(), a.cfg.PeersCacheFile)
	if err != nil {
		return errors.Wrap(err, "init peers manager")
	}

	stateDB, err := storage.OpenBolt(a.cfg.StateFile)
	if err != nil {
		_ = peersSvc.Close()
		return errors.Wrap(err, "create bolt storage")
	}
	defer func() {
		if closeErr := stateDB.Close(); closeErr != nil {
			logger.Errorf("close state storage: %v", closeErr)
		}
	}()

	updMgr := tgupdates.New(tgupdates.Config{
		Handler:      updDispatcher,
		Storage:      boltstor.NewStateStorage(stateDB),
		AccessHasher: peersSvc.Mgr,
	})
	lazyHandler.set(contribstorage.UpdateHook(peersSvc.Mgr.UpdateHook(updMgr), peersSvc.Store()))

	// 3) Доменные сервисы.
	cooldown := a.cfg.Cooldown()
	if cooldown <= 0 {
		cooldown = dispatch.DefaultCooldown
	}
	registry := session.NewRegistry(2 * cooldown) //nolint:mnd // запас на дрейф часов
	engine := purge.New(clock.Real{}, purge.Options{
		PauseEvery: a.cfg.PurgePauseEvery,
		Pause:      a.cfg.PurgePause(),
	})
	controller := flows.New(flows.Deps{
		Registry: registry,
		Bot:      mtproto.NewBotClient(client.API(), peersSvc),
		Connector: mtproto.NewConnector(mtproto.ConnectorOptions{
			TestDC: a.cfg.TestDC,
			RPS:    a.cfg.ThrottleRPS,
			Device: device(),
		}),
		Engine:        engine,
		DialogTimeout: a.cfg.DialogTimeout(),
	})
	events := dispatch.New(dispatch.Options{
		Registry: registry,
		Flows:    controller,
		Clock:    clock.Real{},
		Cooldown: cooldown,
	})

	// 4) Маршрутизация апдейтов в диспетчер; повторы после getDifference подавляются.
	dedup := concurrency.NewDeduplicator(dedupWindow)
	botchat.NewRouter(client.API(), peersSvc, events, dedup).Register(updDispatcher)

	a.runner = NewRunner(a.mainCtx, a.mainCancel, a.cfg.BotToken, client, peersSvc, events, dedup)
	return a.runner.Run(updMgr)
}
