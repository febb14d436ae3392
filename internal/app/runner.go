// Package app: runner.go — оркестрация жизненного цикла. Здесь выполняется вход
// бота по токену, стартует менеджер апдейтов и организуется graceful shutdown:
// сначала останавливаются сценарии (с отключением вторичных сессий), затем
// менеджер апдейтов и кэш пиров, и только после этого гасится MTProto-движок.
package app

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram"
	tgupdates "github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/dispatch"
	"tg-channel-cleaner/internal/infra/clock"
	"tg-channel-cleaner/internal/infra/concurrency"
	"tg-channel-cleaner/internal/infra/logger"
	"tg-channel-cleaner/internal/infra/telegram/peersmgr"
)

// Runner инкапсулирует сценарий запуска и остановки клиента бота и связанных подсистем.
type Runner struct {
	client        *telegram.Client          // MTProto-клиент бота.
	botToken      string                    // Токен для входа через auth.importBotAuthorization.
	mainCtx       context.Context           // Внешний контекст процесса: отменяется по Ctrl+C/сигналам.
	mainCancel    context.CancelFunc        // Инициирует общий shutdown.
	peers         *peersmgr.Service         // Сервис пиров (peers.Manager + bbolt).
	events        *dispatch.Dispatcher      // Диспетчер событий и запущенные сценарии.
	dedup         *concurrency.Deduplicator // Подавление повторных апдейтов.
	clock         clock.Clock               // Ожидание FLOOD_WAIT при входе.
	updatesWG     sync.WaitGroup            // WaitGroup для updates_manager.
	mu            sync.Mutex                // Защищает updatesCancel и stopped.
	updatesCancel context.CancelFunc        // Отмена контекста updates_manager.
	stopped       bool                      // Сервисы остановлены, новые не стартуют.
	stopOnce      sync.Once
}

// NewRunner подготавливает Runner с переданными зависимостями.
func NewRunner(
	mainCtx context.Context,
	mainCancel context.CancelFunc,
	botToken string,
	client *telegram.Client,
	peers *peersmgr.Service,
	events *dispatch.Dispatcher,
	dedup *concurrency.Deduplicator,
) *Runner {
	return &Runner{
		mainCtx:    mainCtx,
		mainCancel: mainCancel,
		botToken:   botToken,
		client:     client,
		peers:      peers,
		events:     events,
		dedup:      dedup,
		clock:      clock.Real{},
	}
}

// Run — главный цикл бота. Используется отдельный контекст для MTProto-движка,
// чтобы сценарии успели завершиться до гашения сетевого уровня.
func (r *Runner) Run(updmgr *tgupdates.Manager) error {
	clientCtx, clientCancel := context.WithCancel(context.Background())
	defer clientCancel()

	// Отслеживание сигналов стартует сразу, чтобы Ctrl+C работал во время инициализации.
	var shutdownWG sync.WaitGroup
	shutdownWG.Go(func() {
		<-r.mainCtx.Done()
		logger.Debug("Shutdown signal received, stopping runner...")
		r.stopAllServices()
		clientCancel()
	})

	err := r.client.Run(clientCtx, func(ctx context.Context) error {
		var self *tg.User
		loginErr := retryFloodWait(ctx, r.clock, func(ctx context.Context) error {
			var err error
			self, err = r.loginBot(ctx)
			return err
		})
		if loginErr != nil {
			return loginErr
		}

		r.initPeers(ctx)
		r.dedup.Start(ctx)
		r.startUpdates(ctx, updmgr, self.ID)
		logger.Info("Cleaner bot running...")

		<-ctx.Done()
		return ctx.Err()
	})

	// Ошибка старта: инициируем общий shutdown сами.
	r.mainCancel()
	shutdownWG.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loginBot входит по токену, если сохранённая сессия не авторизована.
func (r *Runner) loginBot(ctx context.Context) (*tg.User, error) {
	status, err := r.client.Auth().Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auth status")
	}
	if !status.Authorized {
		if _, err := r.client.Auth().Bot(ctx, r.botToken); err != nil {
			return nil, errors.Wrap(err, "bot login")
		}
	}

	self, err := r.client.Self(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "self")
	}
	if !self.Bot {
		return nil, errors.New("session belongs to a user account, not a bot")
	}
	logger.Info("Logged in as:",
		zap.String("FirstName", self.FirstName),
		zap.String("Username", self.Username),
		zap.Int64("ID", self.ID),
	)
	return self, nil
}

// retryFloodWait повторяет op, пока сервер отвечает FLOOD_WAIT, выдерживая
// указанную паузу. Прочие ошибки возвращаются сразу.
func retryFloodWait(ctx context.Context, clk clock.Clock, op func(ctx context.Context) error) error {
	for {
		err := op(ctx)
		wait, ok := tgerr.AsFloodWait(err)
		if !ok {
			return err
		}
		logger.Warn("flood wait during bot start, retrying", zap.Duration("wait", wait))
		if err := clk.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// initPeers поднимает кэш пиров. Ошибки не фатальны: пиры пополняются из апдейтов.
func (r *Runner) initPeers(ctx context.Context) {
	if err := r.peers.Mgr.Init(ctx); err != nil {
		logger.Errorf("failed to init peers manager: %v", err)
	}
	if err := r.peers.LoadFromStorage(ctx); err != nil {
		logger.Errorf("failed to load peers from storage: %v", err)
	}
}

func (r *Runner) startUpdates(ctx context.Context, updmgr *tgupdates.Manager, selfID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	logger.Debug("starting service updates_manager")
	updatesCtx, updatesCancel := context.WithCancel(ctx)
	r.updatesCancel = updatesCancel
	r.updatesWG.Go(func() {
		mgrErr := updmgr.Run(updatesCtx, r.client.API(), selfID, tgupdates.AuthOptions{
			IsBot: true,
			OnStart: func(context.Context) {
				logger.Debug("Updates manager started")
			},
		})
		if mgrErr != nil && !errors.Is(mgrErr, context.Canceled) {
			logger.Errorf("updmgr.Run return: %v", mgrErr)
			r.mainCancel()
		}
		logger.Debugf("updates_manager service: Run finished (err=%v)", mgrErr)
	})
}

// stopAllServices останавливает сервисы в обратном порядке. Идемпотентен.
func (r *Runner) stopAllServices() {
	r.stopOnce.Do(func() {
		// Сценарии: отмена диалогов, отключение вторичных сессий.
		logger.Debug("stopping service dispatcher")
		r.events.Shutdown()
		logger.Debug("service dispatcher stopped")

		logger.Debug("stopping service updates_manager")
		r.mu.Lock()
		r.stopped = true
		cancel := r.updatesCancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		r.updatesWG.Wait()
		logger.Debug("service updates_manager stopped")

		logger.Debug("stopping service deduplicator")
		r.dedup.Stop()
		logger.Debug("service deduplicator stopped")

		logger.Debug("stopping service peers_manager")
		if err := r.peers.Close(); err != nil {
			logger.Errorf("failed to stop peers_manager: %v", err)
		}
		logger.Debug("service peers_manager stopped")
	})
}
