// Package clocktest — управляемые часы для тестов.
package clocktest

import (
	"context"
	"sync"
	"time"

	"tg-channel-cleaner/internal/infra/clock"
)

// Fake — часы, которые не ждут: Sleep мгновенно сдвигает время и
// запоминает запрошенную длительность.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

var _ clock.Clock = (*Fake)(nil)

// New создаёт часы, стоящие на start.
func New(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

// Advance сдвигает время без записи в Sleeps.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Sleeps возвращает все запрошенные ожидания по порядку.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
