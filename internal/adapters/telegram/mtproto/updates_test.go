package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestSentMessageID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resp   tg.UpdatesClass
		want   int
		wantOK bool
	}{
		{name: "short sent", resp: &tg.UpdateShortSentMessage{ID: 11}, want: 11, wantOK: true},
		{
			name: "message id update wins",
			resp: &tg.Updates{Updates: []tg.UpdateClass{
				&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 40}},
				&tg.UpdateMessageID{ID: 41, RandomID: 1},
			}},
			want:   41,
			wantOK: true,
		},
		{
			name:   "new channel message",
			resp:   &tg.Updates{Updates: []tg.UpdateClass{&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 7}}}},
			want:   7,
			wantOK: true,
		},
		{
			name:   "combined",
			resp:   &tg.UpdatesCombined{Updates: []tg.UpdateClass{&tg.UpdateNewMessage{Message: &tg.Message{ID: 3}}}},
			want:   3,
			wantOK: true,
		},
		{name: "empty updates", resp: &tg.Updates{}},
		{name: "too long", resp: &tg.UpdatesTooLong{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := SentMessageID(tt.resp)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("SentMessageID() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
