// Package session хранит транзитное состояние пользователей бота: текущую
// стадию диалога, активный Conversation и окно кулдауна на нажатия кнопок.
//
// Ничего не сохраняется на диск: перезапуск процесса обнуляет все сессии.
// Записью пользователя владеют только диспетчер и флоу, запущенный для него;
// сам реестр безопасен для конкурентного доступа.
package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"tg-channel-cleaner/internal/domain/conversation"
)

// Stage — стадия диалога пользователя.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageMainMenu  Stage = "main_menu"
	StageUserMode  Stage = "user_mode"
	StageAdminMode Stage = "admin_mode"
)

type entry struct {
	stage Stage
	conv  *conversation.Conversation
}

// Registry — реестр пользовательских сессий.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry

	// cooldowns хранит момент окончания кулдауна. go-cache вычищает записи
	// старше retention, а решение принимается по переданному now.
	cooldowns *cache.Cache
}

// NewRegistry создаёт пустой реестр. retention должен быть не короче окна
// кулдауна, иначе записи пропадут раньше срока.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		entries:   make(map[int64]*entry),
		cooldowns: cache.New(retention, retention),
	}
}

func (r *Registry) entry(user int64) *entry {
	e, ok := r.entries[user]
	if !ok {
		e = &entry{stage: StageIdle}
		r.entries[user] = e
	}
	return e
}

// SetStage переводит пользователя в стадию stage.
func (r *Registry) SetStage(user int64, stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(user).stage = stage
}

// SwapStage атомарно переводит пользователя в stage и возвращает прежнюю стадию.
func (r *Registry) SwapStage(user int64, stage Stage) Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(user)
	prev := e.stage
	e.stage = stage
	return prev
}

// Stage возвращает стадию пользователя; ok=false, если сессии нет.
func (r *Registry) Stage(user int64) (Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[user]
	if !ok {
		return StageIdle, false
	}
	return e.stage, true
}

// Attach закрепляет за пользователем активный диалог. Предыдущий диалог,
// если он остался, отменяется: активным может быть только один.
func (r *Registry) Attach(user int64, conv *conversation.Conversation) {
	r.mu.Lock()
	e := r.entry(user)
	prev := e.conv
	e.conv = conv
	r.mu.Unlock()

	if prev != nil && prev != conv {
		prev.Cancel()
	}
}

// Detach снимает диалог conv, если он всё ещё закреплён за пользователем.
// Флоу, завершившийся после отмены, не затрёт уже новый диалог.
func (r *Registry) Detach(user int64, conv *conversation.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[user]; ok && e.conv == conv {
		e.conv = nil
	}
}

// Conversation возвращает активный диалог пользователя или nil.
func (r *Registry) Conversation(user int64) *conversation.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[user]; ok {
		return e.conv
	}
	return nil
}

// Cancel очищает сессию пользователя: стадию, кулдаун и активный диалог.
// Возвращает true, если был отменён живой диалог.
func (r *Registry) Cancel(user int64) bool {
	r.mu.Lock()
	e, ok := r.entries[user]
	delete(r.entries, user)
	r.mu.Unlock()

	r.cooldowns.Delete(cooldownKey(user))

	if !ok || e.conv == nil {
		return false
	}
	select {
	case <-e.conv.Done():
		return false
	default:
	}
	e.conv.Cancel()
	return true
}

// OnCooldown сообщает, что кулдаун пользователя ещё не истёк к моменту now.
func (r *Registry) OnCooldown(user int64, now time.Time) bool {
	v, ok := r.cooldowns.Get(cooldownKey(user))
	if !ok {
		return false
	}
	expiry, _ := v.(time.Time)
	return expiry.After(now)
}

// SetCooldown запрещает действия пользователя до expiry.
func (r *Registry) SetCooldown(user int64, expiry time.Time) {
	r.cooldowns.Set(cooldownKey(user), expiry, cache.DefaultExpiration)
}

func cooldownKey(user int64) string {
	return strconv.FormatInt(user, 10)
}
