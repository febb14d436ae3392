// Package purge — движок массового удаления сообщений канала.
//
// Движок проходит ленивую последовательность сообщений один раз и удаляет их
// по одному. FLOOD_WAIT на сообщении выдерживается ровно на указанную сервером
// длительность, а само сообщение пропускается без повтора. После каждых
// PauseEvery успешных удалений делается короткая пауза, чтобы не упираться
// в лимиты заранее. Прочие ошибки удаления логируются и не прерывают проход.
package purge

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/faults"
	"tg-channel-cleaner/internal/infra/clock"
	"tg-channel-cleaner/internal/infra/logger"
)

const (
	DefaultPauseEvery = 10
	DefaultPause      = time.Second

	// maxStalledResumes — сколько раз подряд список можно открыть заново
	// после FLOOD_WAIT, не удалив ни одного сообщения.
	maxStalledResumes = 5
)

// Result — итог прохода.
type Result struct {
	// Deleted — число успешно удалённых сообщений; только растёт.
	Deleted int
	// Failed — сообщения, удаление которых завершилось иной ошибкой.
	Failed int
	// Skipped — сообщения, на которых сервер вернул FLOOD_WAIT.
	Skipped int
	// Waited — суммарное время, проведённое в FLOOD_WAIT.
	Waited time.Duration
}

// Options — параметры самоторможения.
type Options struct {
	PauseEvery int
	Pause      time.Duration
}

// Engine удаляет все сообщения канала через backend.Client.
type Engine struct {
	clock      clock.Clock
	pauseEvery int
	pause      time.Duration
}

// New создаёт движок. Неположительный PauseEvery и отрицательная Pause
// заменяются значениями по умолчанию; нулевая Pause отключает паузы.
func New(clk clock.Clock, opts Options) *Engine {
	if opts.PauseEvery <= 0 {
		opts.PauseEvery = DefaultPauseEvery
	}
	if opts.Pause < 0 {
		opts.Pause = DefaultPause
	}
	return &Engine{clock: clk, pauseEvery: opts.PauseEvery, pause: opts.Pause}
}

// DeleteAll удаляет все сообщения канала chatID. onProgress (может быть nil)
// вызывается в каждой точке самоторможения с текущим итогом.
//
// FLOOD_WAIT при чтении списка сообщений выдерживается, после чего список
// открывается заново: удалённых сообщений в нём уже нет.
//
// Ошибка резолва канала возвращается как *faults.ChannelAccessError. Ошибка
// итератора и отмена контекста возвращаются вместе с частичным итогом.
func (e *Engine) DeleteAll(
	ctx context.Context,
	client backend.Client,
	chatID int64,
	onProgress func(Result),
) (Result, error) {
	var res Result

	ch, err := client.ResolveChannel(ctx, chatID)
	if err != nil {
		return res, accessError(chatID, err)
	}

	logger.Info("purge started", zap.Int64("channel", chatID), zap.String("title", ch.Title()))

	opened := false
	stalled := 0
	for {
		it, err := client.Messages(ctx, ch)
		if err == nil {
			opened = true
			before := res.Deleted
			if err = e.drain(ctx, client, ch, it, &res, onProgress); err == nil {
				break
			}
			if res.Deleted > before {
				stalled = 0
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		wait, ok := backend.AsFloodWait(err)
		if !ok || stalled >= maxStalledResumes {
			if !opened {
				return res, accessError(chatID, err)
			}
			return res, errors.Wrap(err, "iterate messages")
		}
		stalled++

		logger.Warn("flood wait while listing messages, resuming",
			zap.Int64("channel", chatID),
			zap.Duration("wait", wait),
			zap.Int("deleted", res.Deleted),
		)
		res.Waited += wait
		if err := e.clock.Sleep(ctx, wait); err != nil {
			return res, err
		}
	}

	logger.Info("purge finished",
		zap.Int64("channel", chatID),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// drain проходит один открытый список сообщений до конца или до ошибки.
func (e *Engine) drain(
	ctx context.Context,
	client backend.Client,
	ch backend.Channel,
	it backend.MessageIterator,
	res *Result,
	onProgress func(Result),
) error {
	for it.Next(ctx) {
		msg := it.Value()

		err := client.DeleteMessage(ctx, ch, msg)
		if err == nil {
			res.Deleted++
			if res.Deleted%e.pauseEvery == 0 {
				if onProgress != nil {
					onProgress(*res)
				}
				if err := e.clock.Sleep(ctx, e.pause); err != nil {
					return err
				}
			}
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if wait, ok := backend.AsFloodWait(err); ok {
			logger.Warn("flood wait during purge",
				zap.Int("msg_id", msg.ID),
				zap.Duration("wait", wait),
			)
			res.Skipped++
			res.Waited += wait
			if err := e.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		logger.Error("delete failed", zap.Int("msg_id", msg.ID), zap.Error(err))
		res.Failed++
	}

	if err := it.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func accessError(chatID int64, err error) error {
	var ae *faults.ChannelAccessError
	if errors.As(err, &ae) {
		return err
	}
	return &faults.ChannelAccessError{
		ChannelID: chatID,
		Reason:    "Channel not found/private",
		Err:       err,
	}
}
