// Package dispatch маршрутизирует входящие события бота: команды /start и
// /cancel, нажатия inline-кнопок и свободный текст.
//
// Диспетчер не знает о транспорте: адаптер переводит апдейты Telegram в
// вызовы Message и Callback и передаёт conversation.Chat для ответа.
// Сценарии запускаются в отдельных горутинах, чтобы следующие апдейты того же
// пользователя (ответы на вопросы, /cancel) доходили до диалога.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/flows"
	"tg-channel-cleaner/internal/domain/session"
	"tg-channel-cleaner/internal/infra/clock"
	"tg-channel-cleaner/internal/infra/logger"
)

// DefaultCooldown — окно, в течение которого повторные нажатия отклоняются.
const DefaultCooldown = 30 * time.Second

const (
	CooldownAlert   = "⏳ Please wait before another action"
	CancelledText   = "❌ Operation cancelled"
	callbackFailed  = "❌ An error occurred. Please try again."
	floodWaitFormat = "⏳ You need to wait for %d seconds before retrying."
)

// Runner запускает сценарии; блокирует до их завершения.
type Runner interface {
	RunUserMode(ctx context.Context, user flows.User, chat conversation.Chat) flows.Outcome
	RunAdminMode(ctx context.Context, user flows.User, chat conversation.Chat) flows.Outcome
}

// Answerer подтверждает callback-запрос (всплывающее уведомление или тихо).
type Answerer interface {
	Answer(ctx context.Context, text string, alert bool) error
}

// Callback — нажатие inline-кнопки.
type Callback struct {
	User flows.User
	Chat conversation.Chat
	// MsgID — сообщение с кнопкой; help правит его текст.
	MsgID  int
	Data   string
	Answer Answerer
}

// Options — параметры диспетчера.
type Options struct {
	Registry *session.Registry
	Flows    Runner
	Clock    clock.Clock
	Cooldown time.Duration
}

// Dispatcher — точка входа событий от пользователей.
type Dispatcher struct {
	reg      *session.Registry
	flows    Runner
	clock    clock.Clock
	cooldown time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создаёт диспетчер. Сценарии живут в его собственном контексте, который
// завершает Shutdown.
func New(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		reg:      opts.Registry,
		flows:    opts.Flows,
		clock:    opts.Clock,
		cooldown: opts.Cooldown,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Message обрабатывает входящее текстовое сообщение.
func (d *Dispatcher) Message(ctx context.Context, user flows.User, chat conversation.Chat, text string) error {
	switch command(text) {
	case "/start":
		return d.Start(ctx, user, chat)
	case conversation.CancelCommand:
		return d.Cancel(ctx, user, chat)
	}
	return d.Text(ctx, user, chat, text)
}

// Start сбрасывает любой начатый сценарий и показывает главное меню.
func (d *Dispatcher) Start(ctx context.Context, user flows.User, chat conversation.Chat) error {
	if d.reg.Cancel(user.ID) {
		logger.Info("active flow reset by /start", zap.Int64("user", user.ID))
	}
	return flows.ShowMenu(ctx, d.reg, chat, user, flows.StartHeader)
}

// Cancel очищает сессию пользователя и возвращает его в меню.
func (d *Dispatcher) Cancel(ctx context.Context, user flows.User, chat conversation.Chat) error {
	if d.reg.Cancel(user.ID) {
		logger.Info("active flow cancelled", zap.Int64("user", user.ID))
	}
	if _, err := chat.Send(ctx, CancelledText); err != nil {
		return err
	}
	return flows.ShowMenu(ctx, d.reg, chat, user, flows.CancelHeader)
}

// Text доставляет ответ ожидающему диалогу. Вне диалога текст в главном
// меню приводит к повторному показу меню, в остальных стадиях игнорируется.
func (d *Dispatcher) Text(ctx context.Context, user flows.User, chat conversation.Chat, text string) error {
	if conv := d.reg.Conversation(user.ID); conv != nil && conv.Deliver(text) {
		return nil
	}
	if stage, _ := d.reg.Stage(user.ID); stage == session.StageMainMenu {
		return flows.ShowMenu(ctx, d.reg, chat, user, flows.NudgeHeader)
	}
	return nil
}

// Callback обрабатывает нажатие кнопки с учётом кулдауна. Ошибки ответа
// сообщаются пользователю и не поднимаются выше.
func (d *Dispatcher) Callback(ctx context.Context, cb Callback) error {
	now := d.clock.Now()
	if d.reg.OnCooldown(cb.User.ID, now) {
		return cb.Answer.Answer(ctx, CooldownAlert, true)
	}
	d.reg.SetCooldown(cb.User.ID, now.Add(d.cooldown))

	if err := d.handleCallback(ctx, cb); err != nil {
		d.reportCallbackError(ctx, cb, err)
	}
	return nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb Callback) error {
	if err := cb.Answer.Answer(ctx, "", false); err != nil {
		return err
	}

	switch cb.Data {
	case flows.ActionUserMode:
		d.launch(cb, session.StageUserMode, d.flows.RunUserMode)
	case flows.ActionAdminMode:
		d.launch(cb, session.StageAdminMode, d.flows.RunAdminMode)
	case flows.ActionHelp:
		return cb.Chat.Edit(ctx, cb.MsgID, flows.HelpText)
	default:
		logger.Debug("unknown callback", zap.Int64("user", cb.User.ID), zap.String("data", cb.Data))
	}
	return nil
}

type runFunc func(ctx context.Context, user flows.User, chat conversation.Chat) flows.Outcome

// launch стартует сценарий, если пользователь ещё не в этой стадии.
func (d *Dispatcher) launch(cb Callback, stage session.Stage, run runFunc) {
	if prev := d.reg.SwapStage(cb.User.ID, stage); prev == stage {
		logger.Debug("flow already running", zap.Int64("user", cb.User.ID), zap.String("stage", string(stage)))
		return
	}

	d.wg.Go(func() {
		run(d.ctx, cb.User, cb.Chat)
	})
}

func (d *Dispatcher) reportCallbackError(ctx context.Context, cb Callback, err error) {
	text := callbackFailed
	if wait, ok := backend.AsFloodWait(err); ok {
		logger.Error("flood wait while handling callback", zap.Duration("wait", wait))
		text = fmt.Sprintf(floodWaitFormat, int(wait.Seconds()))
	} else {
		logger.Error("callback failed", zap.Int64("user", cb.User.ID), zap.Error(err))
	}
	if _, sendErr := cb.Chat.Send(ctx, text); sendErr != nil {
		logger.Warn("callback error notice failed", zap.Error(sendErr))
	}
}

// Wait блокирует до завершения всех запущенных сценариев.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown отменяет контекст сценариев и ждёт их завершения.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.wg.Wait()
}

// command выделяет команду из текста: "/start@bot payload" → "/start".
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}
