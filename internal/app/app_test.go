package app

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tg-channel-cleaner/internal/adapters/telegram/mtproto"
	"tg-channel-cleaner/internal/domain/purge"
	"tg-channel-cleaner/internal/infra/clock/clocktest"
)

// channelServer — фейковый RPC-сервер канала с сообщениями 1..3. Первое
// удаление floodID отвечает FLOOD_WAIT_1.
type channelServer struct {
	floodID int

	mu       sync.Mutex
	present  map[int]bool
	attempts map[int]int
	flooded  bool
}

func newChannelServer(floodID int) *channelServer {
	return &channelServer{
		floodID:  floodID,
		present:  map[int]bool{1: true, 2: true, 3: true},
		attempts: make(map[int]int),
	}
}

func (s *channelServer) Invoke(_ context.Context, input bin.Encoder, output bin.Decoder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req := input.(type) {
	case *tg.MessagesSendMessageRequest:
		out, _ := output.(*tg.UpdatesBox)
		out.Updates = &tg.UpdateShortSentMessage{ID: 4}
	case *tg.ChannelsDeleteMessagesRequest:
		for _, id := range req.ID {
			s.attempts[id]++
			if id == s.floodID && !s.flooded {
				s.flooded = true
				return tgerr.New(420, "FLOOD_WAIT_1")
			}
			delete(s.present, id)
		}
	case *tg.ChannelsGetMessagesRequest:
		msgs := make([]tg.MessageClass, 0, len(req.ID))
		for _, in := range req.ID {
			id := in.(*tg.InputMessageID).ID
			if s.present[id] {
				msgs = append(msgs, &tg.Message{ID: id})
			} else {
				msgs = append(msgs, &tg.MessageEmpty{ID: id})
			}
		}
		out, _ := output.(*tg.MessagesMessagesBox)
		out.Messages = &tg.MessagesChannelMessages{Messages: msgs}
	default:
		return errors.New("unexpected request")
	}
	return nil
}

func (s *channelServer) deleteAttempts(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

func botAPI(server tg.Invoker, rps int) *tg.Client {
	invoker := server
	mws := botMiddlewares(rps)
	for i := len(mws) - 1; i >= 0; i-- {
		invoker = mws[i].Handle(invoker)
	}
	return tg.NewClient(invoker)
}

func TestAdminPurgeSkipsFloodWaitedMessage(t *testing.T) {
	t.Parallel()

	server := newChannelServer(3)
	resolver := mtproto.ChannelResolverFunc(func(_ context.Context, id int64) (*tg.Channel, error) {
		return &tg.Channel{ID: id, AccessHash: 1, Title: "Cleanup"}, nil
	})
	bot := mtproto.NewBotClient(botAPI(server, 1000), resolver)

	clk := clocktest.New(time.Unix(0, 0))
	engine := purge.New(clk, purge.Options{})

	got, err := engine.DeleteAll(context.Background(), bot, -100123456789, nil)
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if want := (purge.Result{Deleted: 2, Skipped: 1, Waited: time.Second}); got != want {
		t.Fatalf("DeleteAll() = %+v, want %+v", got, want)
	}
	if n := server.deleteAttempts(3); n != 1 {
		t.Fatalf("flood-waited message deleted %d times, want 1", n)
	}
	if sleeps := clk.Sleeps(); !reflect.DeepEqual(sleeps, []time.Duration{time.Second}) {
		t.Fatalf("sleeps = %v", sleeps)
	}
}

func TestRetryFloodWait(t *testing.T) {
	t.Parallel()

	clk := clocktest.New(time.Unix(0, 0))
	calls := 0
	err := retryFloodWait(context.Background(), clk, func(context.Context) error {
		calls++
		if calls < 3 {
			return tgerr.New(420, "FLOOD_WAIT_3")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("retryFloodWait() = %v after %d calls", err, calls)
	}
	if sleeps := clk.Sleeps(); !reflect.DeepEqual(sleeps, []time.Duration{3 * time.Second, 3 * time.Second}) {
		t.Fatalf("sleeps = %v", sleeps)
	}

	boom := errors.New("ACCESS_TOKEN_INVALID")
	calls = 0
	err = retryFloodWait(context.Background(), clk, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("retryFloodWait() = %v after %d calls", err, calls)
	}
}
