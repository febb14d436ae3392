// Package flows — сценарии пользовательского и админского режимов очистки.
//
// Каждый сценарий — строго последовательная цепочка шагов «вопрос → ответ →
// проверка» поверх conversation.Conversation. Любой шаг завершается одним из
// исходов: успех, отмена, брошенный диалог или сбой. Исход обрабатывается в
// одном месте (finish): сообщение пользователю, освобождение вторичной
// сессии, снятие диалога из реестра и повторный показ главного меню.
package flows

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/domain/purge"
	"tg-channel-cleaner/internal/domain/session"
	"tg-channel-cleaner/internal/infra/logger"
)

// DefaultDialogTimeout — окно неактивности диалога.
const DefaultDialogTimeout = 600 * time.Second

const cancelledText = "❌ Deletion cancelled"

// Outcome — тег результата сценария.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeCancelled
	OutcomeTimedOut
	OutcomeFailed
	// OutcomeInterrupted — диалог отменён извне (/cancel, /start): пользователю
	// уже ответил диспетчер.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return "interrupted"
	}
}

// Deps — зависимости контроллера.
type Deps struct {
	Registry *session.Registry
	// Bot — основной клиент бота, источник полномочий в админском режиме.
	Bot backend.Client
	// Connector открывает вторичные сессии пользовательского режима.
	Connector     backend.Connector
	Engine        *purge.Engine
	DialogTimeout time.Duration
}

// Controller запускает сценарии. Один экземпляр обслуживает всех пользователей.
type Controller struct {
	reg       *session.Registry
	bot       backend.Client
	connector backend.Connector
	engine    *purge.Engine
	timeout   time.Duration
}

// New создаёт контроллер сценариев.
func New(d Deps) *Controller {
	if d.DialogTimeout <= 0 {
		d.DialogTimeout = DefaultDialogTimeout
	}
	return &Controller{
		reg:       d.Registry,
		bot:       d.Bot,
		connector: d.Connector,
		engine:    d.Engine,
		timeout:   d.DialogTimeout,
	}
}

type step func(ctx context.Context, conv *conversation.Conversation) error

// run открывает диалог, выполняет шаг и обрабатывает исход.
func (c *Controller) run(
	ctx context.Context,
	user User,
	chat conversation.Chat,
	mode string,
	failFormat string,
	body step,
) Outcome {
	conv := conversation.New(chat, c.timeout)
	c.reg.Attach(user.ID, conv)

	// Отмена диалога прерывает и долгие операции шага, включая удаление.
	stepCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-conv.Done():
			cancel()
		case <-stepCtx.Done():
		}
	}()

	err := body(stepCtx, conv)
	cancel()

	outcome := classify(conv, err)
	logger.Info("flow finished",
		zap.Int64("user", user.ID),
		zap.String("mode", mode),
		zap.Stringer("outcome", outcome),
		zap.Error(err),
	)
	c.finish(ctx, user, chat, conv, outcome, failFormat, err)
	return outcome
}

func classify(conv *conversation.Conversation, err error) Outcome {
	switch {
	case conv.CancelledExternally():
		return OutcomeInterrupted
	case err == nil:
		return OutcomeDone
	case faults.IsCancelled(err):
		return OutcomeCancelled
	case faults.IsTimeout(err):
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}

func (c *Controller) finish(
	ctx context.Context,
	user User,
	chat conversation.Chat,
	conv *conversation.Conversation,
	outcome Outcome,
	failFormat string,
	err error,
) {
	c.reg.Detach(user.ID, conv)
	conv.Close()

	if outcome == OutcomeInterrupted || ctx.Err() != nil {
		return
	}

	switch outcome {
	case OutcomeCancelled:
		c.say(ctx, chat, cancelledText)
	case OutcomeFailed:
		c.say(ctx, chat, failureText(failFormat, err))
	}

	if err := ShowMenu(ctx, c.reg, chat, user, ""); err != nil {
		logger.Warn("main menu send failed", zap.Int64("user", user.ID), zap.Error(err))
	}
}

func (c *Controller) say(ctx context.Context, chat conversation.Chat, text string) {
	if _, err := chat.Send(ctx, text); err != nil {
		logger.Warn("flow reply failed", zap.Error(err))
	}
}

// ask задаёт вопрос и возвращает ответ без окружающих пробелов.
func ask(ctx context.Context, conv *conversation.Conversation, prompt string) (string, error) {
	reply, err := conv.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	return trimReply(reply), nil
}

// confirm запрашивает кодовую фразу; любой другой ответ — отмена.
func confirm(ctx context.Context, conv *conversation.Conversation, prompt, phrase string) error {
	reply, err := conv.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	if !isConfirmation(reply, phrase) {
		return faults.ErrCancelled
	}
	return nil
}

// purgeWithProgress запускает удаление, правя одно сообщение прогресса.
func (c *Controller) purgeWithProgress(
	ctx context.Context,
	conv *conversation.Conversation,
	client backend.Client,
	chatID int64,
	startText string,
	doneFormat string,
) error {
	chat := conv.Chat()
	progressID, err := conv.Send(ctx, startText)
	if err != nil {
		return errors.Wrap(err, "send progress")
	}

	res, err := c.engine.DeleteAll(ctx, client, chatID, func(r purge.Result) {
		if editErr := chat.Edit(ctx, progressID, progressText(r)); editErr != nil {
			logger.Debug("progress edit failed", zap.Error(editErr))
		}
	})
	if err != nil {
		return err
	}

	return chat.Edit(ctx, progressID, doneText(doneFormat, res))
}
