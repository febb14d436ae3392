// Package concurrency — вспомогательная инфраструктура конкурентного исполнения.
// Данный файл содержит Deduplicator — потокобезопасный кэш «недавно видели»,
// который подавляет повторную обработку событий в пределах заданного окна.
// Менеджер апдейтов после восстановления разрыва (getDifference) может
// прислать уже обработанное сообщение или нажатие кнопки ещё раз.
package concurrency

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tg-channel-cleaner/internal/infra/logger"
)

const cleanupInterval = time.Minute

// Deduplicator хранит ключи недавно обработанных событий и решает, считать ли
// очередное событие повтором в рамках окна. Структура потокобезопасна.
type Deduplicator struct {
	mu     sync.Mutex           // защищает seen.
	seen   map[string]time.Time // key -> expireAt.
	window time.Duration
	now    func() time.Time

	runMu  sync.Mutex         // защищает старт/остановку фоновой очистки.
	cancel context.CancelFunc // завершает цикл очистки, если он был запущен.
	wg     sync.WaitGroup
}

// NewDeduplicator создаёт кэш подавления повторов с окном window.
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Start поднимает фоновую очистку устаревших ключей. Повторные вызовы игнорируются.
func (d *Deduplicator) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Go(func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.Cleanup()
			}
		}
	})
}

// Stop завершает фоновую очистку и дожидается её окончания.
func (d *Deduplicator) Stop() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	d.wg.Wait()
}

// Seen сообщает, встречался ли key в пределах окна. Новый ключ регистрируется
// с истечением через window, и вызов возвращает false.
func (d *Deduplicator) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		logger.Debug("duplicate event suppressed", zap.String("key", key))
		return true
	}
	d.seen[key] = now.Add(d.window)
	return false
}

// Cleanup удаляет записи с истёкшим сроком.
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
}

// Len — число живых записей (для диагностики).
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
