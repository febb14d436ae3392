package mtproto

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"

	"tg-channel-cleaner/internal/domain/backend"
)

func TestWrapRPC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantWait time.Duration
		wantFlood bool
	}{
		{name: "flood wait", err: tgerr.New(420, "FLOOD_WAIT_12"), wantWait: 12 * time.Second, wantFlood: true},
		{name: "premium flood wait", err: tgerr.New(420, "FLOOD_PREMIUM_WAIT_3"), wantWait: 3 * time.Second, wantFlood: true},
		{name: "other rpc error", err: tgerr.New(400, "MESSAGE_ID_INVALID")},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := WrapRPC("delete", tt.err)
			if !errors.Is(got, tt.err) {
				t.Fatalf("WrapRPC() lost the cause: %v", got)
			}
			wait, ok := backend.AsFloodWait(got)
			if ok != tt.wantFlood || wait != tt.wantWait {
				t.Fatalf("AsFloodWait() = (%v, %v), want (%v, %v)", wait, ok, tt.wantWait, tt.wantFlood)
			}
		})
	}

	if WrapRPC("noop", nil) != nil {
		t.Fatal("WrapRPC(nil) must stay nil")
	}
}
