// Package storage — утилиты безопасной работы с локальным хранилищем бота.
// Здесь:
//   - EnsureDir — гарантирует наличие директории для целевого пути;
//   - AtomicWriteFile — атомарная запись файла (MTProto-сессия бота);
//   - OpenBolt — открытие bbolt-базы (состояние апдейтов, кэш пиров) с таймаутом блокировки.
//
// Данные пользователей (учётные данные, вторичные сессии) сюда не попадают никогда.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"tg-channel-cleaner/internal/infra/logger"
)

// DefaultFilePerm — права на файлы сессии и баз: только владелец процесса.
const DefaultFilePerm os.FileMode = 0o600

// boltOpenTimeout ограничивает ожидание файловой блокировки bbolt: второй экземпляр
// бота с тем же STATE_FILE должен упасть сразу, а не висеть.
const boltOpenTimeout = time.Second

// EnsureDir гарантирует наличие каталога для указанного файла.
// Если путь не содержит директорию ("." или пустая строка), ничего не делает.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// OpenBolt создаёт каталог и открывает bbolt-базу по пути path.
func OpenBolt(path string) (*bbolt.DB, error) {
	if err := EnsureDir(path); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, DefaultFilePerm, &bbolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return db, nil
}

// AtomicWriteFile атомарно записывает байты в файл path.
//
// Алгоритм: temp в той же директории → write → fsync(temp) → chmod → close → rename → fsync(dir).
// Либо старый файл остаётся цел, либо новый записан полностью. rename атомарен только
// в пределах одного тома, поэтому temp создаётся рядом с целевым файлом.
func AtomicWriteFile(path string, data []byte) error {
	clean := filepath.Clean(path)
	if err := EnsureDir(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.CreateTemp(dir, "atomic-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Chmod(DefaultFilePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, clean); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		if errSync := dirFile.Sync(); errSync != nil {
			logger.Warnf("AtomicWriteFile: dir sync error: %v", errSync) // best-effort для Windows/некоторых FS
		}
		_ = dirFile.Close()
	}
	return nil
}
