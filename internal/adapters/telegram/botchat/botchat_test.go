package botchat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tg-channel-cleaner/internal/adapters/telegram/botchat"
	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/dispatch"
	"tg-channel-cleaner/internal/domain/flows"
	"tg-channel-cleaner/internal/domain/session"
	"tg-channel-cleaner/internal/infra/concurrency"
)

type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	sent    []*tg.MessagesSendMessageRequest
	edited  []*tg.MessagesEditMessageRequest
	answers []*tg.MessagesSetBotCallbackAnswerRequest
	sendErr error
	editErr error
}

func (f *fakeAPI) MessagesSendMessage(_ context.Context, req *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, req)
	return &tg.UpdateShortSentMessage{ID: f.nextID}, nil
}

func (f *fakeAPI) MessagesEditMessage(_ context.Context, req *tg.MessagesEditMessageRequest) (tg.UpdatesClass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, req)
	return &tg.Updates{}, f.editErr
}

func (f *fakeAPI) MessagesSetBotCallbackAnswer(_ context.Context, req *tg.MessagesSetBotCallbackAnswerRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	return true, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, r := range f.sent {
		out = append(out, r.Message)
	}
	return out
}

var peer = &tg.InputPeerUser{UserID: 42, AccessHash: 7}

func TestChatSendAndMenu(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	chat := botchat.NewChat(api, peer)

	id, err := chat.Send(context.Background(), "hello")
	if err != nil || id != 1 {
		t.Fatalf("Send() = (%d, %v)", id, err)
	}
	rows := [][]conversation.Button{{{Text: "A", Data: "a"}, {Text: "B", Data: "b"}}, {{Text: "C", Data: "c"}}}
	if id, err = chat.SendMenu(context.Background(), "menu", rows); err != nil || id != 2 {
		t.Fatalf("SendMenu() = (%d, %v)", id, err)
	}

	markup, ok := api.sent[1].ReplyMarkup.(*tg.ReplyInlineMarkup)
	if !ok || len(markup.Rows) != 2 || len(markup.Rows[0].Buttons) != 2 {
		t.Fatalf("markup = %#v", api.sent[1].ReplyMarkup)
	}
	btn, ok := markup.Rows[1].Buttons[0].(*tg.KeyboardButtonCallback)
	if !ok || btn.Text != "C" || string(btn.Data) != "c" {
		t.Fatalf("button = %#v", markup.Rows[1].Buttons[0])
	}
	if api.sent[0].RandomID == 0 || api.sent[0].RandomID == api.sent[1].RandomID {
		t.Fatal("random ids must be non-zero and unique")
	}
}

func TestChatSendFloodWait(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{sendErr: tgerr.New(420, "FLOOD_WAIT_5")}
	_, err := botchat.NewChat(api, peer).Send(context.Background(), "x")
	if wait, ok := backend.AsFloodWait(err); !ok || wait != 5*time.Second {
		t.Fatalf("AsFloodWait() = (%v, %v), err = %v", wait, ok, err)
	}
}

func TestChatEditNotModified(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{editErr: tgerr.New(400, "MESSAGE_NOT_MODIFIED")}
	if err := botchat.NewChat(api, peer).Edit(context.Background(), 3, "same"); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	api.editErr = errors.New("boom")
	if err := botchat.NewChat(api, peer).Edit(context.Background(), 3, "other"); err == nil {
		t.Fatal("Edit() swallowed a real error")
	}
}

func newRouter(api *fakeAPI) (*botchat.Router, *session.Registry) {
	reg := session.NewRegistry(time.Minute)
	d := dispatch.New(dispatch.Options{Registry: reg, Flows: idleRunner{}})
	return botchat.NewRouter(api, nil, d, concurrency.NewDeduplicator(time.Minute)), reg
}

type idleRunner struct{}

func (idleRunner) RunUserMode(context.Context, flows.User, conversation.Chat) flows.Outcome {
	return flows.OutcomeDone
}

func (idleRunner) RunAdminMode(context.Context, flows.User, conversation.Chat) flows.Outcome {
	return flows.OutcomeDone
}

func TestRouterStartCommand(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r, reg := newRouter(api)
	e := tg.Entities{Users: map[int64]*tg.User{42: {ID: 42, AccessHash: 7, FirstName: "Alice"}}}
	u := &tg.UpdateNewMessage{Message: &tg.Message{ID: 1, PeerID: &tg.PeerUser{UserID: 42}, Message: "/start"}}

	if err := r.OnNewMessage(context.Background(), e, u); err != nil {
		t.Fatalf("OnNewMessage() error = %v", err)
	}
	texts := api.sentTexts()
	if len(texts) != 1 || texts[0] != flows.MenuText(flows.User{ID: 42, FirstName: "Alice"}, flows.StartHeader) {
		t.Fatalf("sent = %q", texts)
	}
	if st, _ := reg.Stage(42); st != session.StageMainMenu {
		t.Fatalf("stage = %q", st)
	}
}

func TestRouterSkipsOutgoingAndGroups(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r, _ := newRouter(api)
	e := tg.Entities{Users: map[int64]*tg.User{42: {ID: 42}}}

	updates := []*tg.UpdateNewMessage{
		{Message: &tg.Message{Out: true, PeerID: &tg.PeerUser{UserID: 42}, Message: "/start"}},
		{Message: &tg.Message{PeerID: &tg.PeerChat{ChatID: 5}, Message: "/start"}},
		{Message: &tg.MessageService{ID: 3}},
		{Message: &tg.Message{PeerID: &tg.PeerUser{UserID: 99}, Message: "/start"}},
	}
	for _, u := range updates {
		if err := r.OnNewMessage(context.Background(), e, u); err != nil {
			t.Fatalf("OnNewMessage() error = %v", err)
		}
	}
	if got := api.sentTexts(); len(got) != 0 {
		t.Fatalf("unexpected replies: %q", got)
	}
}

func TestRouterHelpCallback(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r, _ := newRouter(api)
	e := tg.Entities{Users: map[int64]*tg.User{42: {ID: 42, AccessHash: 7}}}
	u := &tg.UpdateBotCallbackQuery{QueryID: 555, UserID: 42, MsgID: 10, Data: []byte(flows.ActionHelp)}

	if err := r.OnBotCallbackQuery(context.Background(), e, u); err != nil {
		t.Fatalf("OnBotCallbackQuery() error = %v", err)
	}
	if len(api.answers) != 1 || api.answers[0].QueryID != 555 || api.answers[0].Alert {
		t.Fatalf("answers = %#v", api.answers)
	}
	if len(api.edited) != 1 || api.edited[0].ID != 10 || api.edited[0].Message != flows.HelpText {
		t.Fatalf("edits = %#v", api.edited)
	}
}

func TestRouterSuppressesReplayedUpdates(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r, _ := newRouter(api)
	e := tg.Entities{Users: map[int64]*tg.User{42: {ID: 42, AccessHash: 7}}}
	u := &tg.UpdateNewMessage{Message: &tg.Message{ID: 5, PeerID: &tg.PeerUser{UserID: 42}, Message: "/start"}}

	for range 2 {
		if err := r.OnNewMessage(context.Background(), e, u); err != nil {
			t.Fatalf("OnNewMessage() error = %v", err)
		}
	}
	if got := api.sentTexts(); len(got) != 1 {
		t.Fatalf("replayed update handled twice: %q", got)
	}
}
