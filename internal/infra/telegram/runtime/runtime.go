// Package telegramruntime — вспомогательные утилиты рантайма MTProto-клиентов.
// В этом файле: ожидания с псевдослучайной длительностью, уважающие контекст
// отмены. Используются между страницами выгрузки диалогов, чтобы не бить по
// серверу пачкой запросов подряд.
package telegramruntime

import (
	"context"
	"math/rand/v2"
	"time"

	"tg-channel-cleaner/internal/infra/logger"
)

const (
	// defaultWaitMinMs — минимальная длительность ожидания по умолчанию (мс).
	defaultWaitMinMs = 300
	// defaultWaitMaxMs — максимальная длительность ожидания по умолчанию (мс).
	defaultWaitMaxMs = 900
)

// WaitRandomTimeMs блокирует текущую горутину на случайный интервал из [minMs, maxMs).
// Таймер немедленно отменяется при ctx.Done(). Поведение на краях:
//   - если minMs==maxMs — ждём ровно это значение;
//   - если обе границы равны нулю — используем дефолтное окно;
//   - если minMs<=0 или maxMs<minMs — логируем ошибку и выходим без ожидания.
//
// Возвращает ctx.Err(), если ожидание прервано.
func WaitRandomTimeMs(ctx context.Context, minMs, maxMs int) error {
	switch {
	case minMs == 0 && maxMs == 0:
		minMs = defaultWaitMinMs
		maxMs = defaultWaitMaxMs
	case minMs <= 0:
		logger.Error("WaitRandomTimeMs: wait time <= 0")
		return nil
	case maxMs < minMs:
		logger.Error("WaitRandomTimeMs: max < min")
		return nil
	}

	delta := maxMs
	if maxMs > minMs {
		delta = rand.IntN(maxMs-minMs) + minMs // #nosec G404
	}

	timer := time.NewTimer(time.Duration(delta) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RandomID возвращает random_id для исходящего сообщения: Telegram требует
// ненулевое значение, уникальное в пределах peer.
func RandomID() int64 {
	return rand.Int64N(1<<63-1) + 1 // #nosec G404
}
