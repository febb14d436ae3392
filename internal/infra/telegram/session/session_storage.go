// Package session содержит файловое хранилище MTProto-сессии аккаунта бота.
//
// Сессия бота переживает перезапуск процесса, чтобы не логиниться по токену
// при каждом старте (лишний auth.importBotAuthorization быстро упирается в
// FLOOD_WAIT). Вторичные пользовательские сессии сюда не попадают: они живут
// только в памяти (tdsession.StorageMemory).
package session

import (
	"context"
	"os"
	"sync"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"

	"tg-channel-cleaner/internal/infra/logger"
	"tg-channel-cleaner/internal/infra/storage"
)

// FileStorage реализует tdsession.Storage поверх обычного файла.
// Потокобезопасен: операции Load/Store защищены мьютексом. Запись атомарна,
// частично записанного файла сессии на диске не бывает.
type FileStorage struct {
	Path string
	mux  sync.Mutex
}

var _ tdsession.Storage = (*FileStorage)(nil)

// LoadSession читает файл сессии с диска.
func (f *FileStorage) LoadSession(_ context.Context) ([]byte, error) {
	if f == nil {
		return nil, errors.New("nil session storage is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, tdsession.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	return data, nil
}

// StoreSession атомарно сохраняет данные сессии на диск.
func (f *FileStorage) StoreSession(_ context.Context, data []byte) error {
	if f == nil {
		return errors.New("nil session storage is invalid")
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := storage.AtomicWriteFile(f.Path, data); err != nil {
		return errors.Wrap(err, "atomic write session")
	}
	logger.Debug("bot session stored")
	return nil
}
