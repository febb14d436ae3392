// Package peersmgr — обёртка над gotd peers.Manager с персистентным хранилищем на bbolt.
// Сервис отвечает за:
//   - открытие/закрытие базы данных кэша пиров аккаунта бота;
//   - подготовку менеджера пиров (в памяти) и доступ к нему;
//   - загрузку сохранённых peers из файла в менеджер при старте;
//   - резолв каналов по ID с сохранённым access_hash.
//
// Для вторичных пользовательских сессий персистентного кэша нет: канал ищется
// выгрузкой диалогов (см. FindChannel).
package peersmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	bboltdb "github.com/gotd/contrib/bbolt"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"tg-channel-cleaner/internal/infra/storage"
)

const peersBucketName = "peers"

var peersBucketBytes = []byte(peersBucketName)

// Service инкапсулирует менеджер пиров и bbolt-хранилище.
type Service struct {
	db    *bbolt.DB
	store contribstorage.PeerStorage
	Mgr   *peers.Manager
}

// New создаёт сервис пиров поверх bbolt и gotd peers.Manager.
// Сетевых запросов не выполняет.
func New(api *tg.Client, dbPath string) (*Service, error) {
	if api == nil {
		return nil, errors.New("peersmgr: api client is nil")
	}
	path := strings.TrimSpace(dbPath)
	if path == "" {
		return nil, errors.New("peersmgr: db path is empty")
	}

	db, err := storage.OpenBolt(path)
	if err != nil {
		return nil, fmt.Errorf("peersmgr: %w", err)
	}

	return &Service{
		db:    db,
		store: bboltdb.NewPeerStorage(db, peersBucketBytes),
		Mgr:   (peers.Options{}).Build(api),
	}, nil
}

// Close закрывает файл базы данных.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store возвращает персистентное хранилище пиров (для UpdateHook).
func (s *Service) Store() contribstorage.PeerStorage {
	return s.store
}

// LoadFromStorage прогружает сохранённые peers из bbolt в оперативный peers.Manager.
// Повреждённый бакет сбрасывается: кэш пиров восстановим из апдейтов.
func (s *Service) LoadFromStorage(ctx context.Context) error {
	iter, exists, err := s.iterateStoredPeers(ctx)
	if err != nil {
		if isJSONUnmarshalError(err) {
			_ = s.resetPeersBucket()
			return nil
		}
		return fmt.Errorf("peersmgr: iterate stored peers: %w", err)
	}
	if !exists {
		return nil
	}
	defer func() {
		_ = iter.Close()
	}()

	users := make([]tg.UserClass, 0)
	chats := make([]tg.ChatClass, 0)

	for iter.Next(ctx) {
		value := iter.Value()
		switch value.Key.Kind {
		case dialogs.User:
			user := value.User
			if user == nil {
				user = &tg.User{ID: value.Key.ID, AccessHash: value.Key.AccessHash}
			}
			users = append(users, user)
		case dialogs.Channel:
			channel := value.Channel
			if channel == nil {
				channel = &tg.Channel{ID: value.Key.ID, AccessHash: value.Key.AccessHash}
			}
			chats = append(chats, channel)
		}
	}

	if err = iter.Err(); err != nil {
		return fmt.Errorf("peersmgr: iterate stored peers: %w", err)
	}
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return s.Mgr.Apply(ctx, users, chats)
}

// ApplyEntities запоминает пользователей и каналы, пришедшие вместе с апдейтом.
func (s *Service) ApplyEntities(ctx context.Context, entities tg.Entities) error {
	users := make([]tg.UserClass, 0, len(entities.Users))
	for _, u := range entities.Users {
		if u != nil {
			users = append(users, u)
		}
	}

	chats := make([]tg.ChatClass, 0, len(entities.Chats)+len(entities.Channels))
	for _, ch := range entities.Chats {
		if ch != nil {
			chats = append(chats, ch)
		}
	}
	for _, ch := range entities.Channels {
		if ch != nil {
			chats = append(chats, ch)
		}
	}

	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return s.Mgr.Apply(ctx, users, chats)
}

// ResolveChannel возвращает полный объект канала по его MTProto-ID.
func (s *Service) ResolveChannel(ctx context.Context, channelID int64) (*tg.Channel, error) {
	channel, err := s.Mgr.ResolveChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %d: %w", channelID, err)
	}
	return channel.Raw(), nil
}

// ResolveUser возвращает InputPeer пользователя по ID из кэша пиров.
func (s *Service) ResolveUser(ctx context.Context, userID int64) (tg.InputPeerClass, error) {
	user, err := s.Mgr.ResolveUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return user.InputPeer(), nil
}

func (s *Service) iterateStoredPeers(ctx context.Context) (contribstorage.PeerIterator, bool, error) {
	exists := false
	if err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(peersBucketBytes) != nil
		return nil
	}); err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	iter, err := s.store.Iterate(ctx)
	if err != nil {
		return nil, false, err
	}
	return iter, true, nil
}

func isJSONUnmarshalError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	return strings.Contains(err.Error(), "json:")
}

func (s *Service) resetPeersBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(peersBucketBytes); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(peersBucketBytes)
		return err
	})
}
