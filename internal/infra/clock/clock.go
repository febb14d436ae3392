// Package clock — источник времени и ожиданий. Доменные узлы (кулдауны, пауза
// движка удаления, ожидание FLOOD_WAIT) принимают Clock, чтобы тесты могли
// подменить реальные таймеры.
package clock

import (
	"context"
	"time"
)

// Clock отдаёт текущее время и умеет ждать с уважением к контексту.
type Clock interface {
	Now() time.Time
	// Sleep блокирует на d или до ctx.Done(); во втором случае возвращает ctx.Err().
	Sleep(ctx context.Context, d time.Duration) error
}

// Real — системные часы.
type Real struct{}

// Now возвращает time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep ждёт d на одноразовом таймере.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
