package flows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tg-channel-cleaner/internal/domain/backend"
	"tg-channel-cleaner/internal/domain/backend/backendtest"
	"tg-channel-cleaner/internal/domain/conversation"
	"tg-channel-cleaner/internal/domain/conversation/conversationtest"
	"tg-channel-cleaner/internal/domain/flows"
	"tg-channel-cleaner/internal/domain/purge"
	"tg-channel-cleaner/internal/domain/session"
	"tg-channel-cleaner/internal/infra/clock/clocktest"
)

var alice = flows.User{ID: 42, FirstName: "Alice"}

type harness struct {
	reg       *session.Registry
	chat      *conversationtest.Chat
	bot       *backendtest.Client
	userSide  *backendtest.Client
	sess      *backendtest.Session
	connector *backendtest.Connector
	ctl       *flows.Controller
}

func newHarness(timeout time.Duration) *harness {
	h := &harness{
		reg:      session.NewRegistry(time.Minute),
		chat:     &conversationtest.Chat{},
		bot:      &backendtest.Client{Channel: backendtest.Channel{Name: "My Channel"}, MessageIDs: []int{3, 2, 1}},
		userSide: &backendtest.Client{MessageIDs: []int{3, 2, 1}},
	}
	h.sess = &backendtest.Session{Sent: backend.SentCode{Hash: "hash"}, Backend: h.userSide}
	h.connector = &backendtest.Connector{Session: h.sess}
	h.ctl = flows.New(flows.Deps{
		Registry:      h.reg,
		Bot:           h.bot,
		Connector:     h.connector,
		Engine:        purge.New(clocktest.New(time.Unix(0, 0)), purge.Options{}),
		DialogTimeout: timeout,
	})
	return h
}

// reply отвечает на вопросы сценария, как только тот откроет диалог.
func (h *harness) reply(answers ...string) {
	go func() {
		for {
			if conv := h.reg.Conversation(alice.ID); conv != nil {
				conversationtest.Answer(conv, answers...)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

func (h *harness) assertBackAtMenu(t *testing.T) {
	t.Helper()
	if h.chat.Menus() != 1 {
		t.Fatalf("menus shown = %d, want 1", h.chat.Menus())
	}
	if st, _ := h.reg.Stage(alice.ID); st != session.StageMainMenu {
		t.Fatalf("stage = %q, want main_menu", st)
	}
	if h.reg.Conversation(alice.ID) != nil {
		t.Fatal("conversation left attached")
	}
}

var userAnswers = []string{
	"12345",
	"0123456789abcdef0123456789abcdef",
	"+12345678901",
	"-100123456789",
	"1 2 3 4 5",
}

func TestUserModeDeletesChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(time.Second)
	h.reply(append(userAnswers, "confirm delete")...)

	if got := h.ctl.RunUserMode(context.Background(), alice, h.chat); got != flows.OutcomeDone {
		t.Fatalf("outcome = %v, want done", got)
	}
	if !h.chat.Contains("✅ Successfully deleted 3 messages!") {
		t.Fatalf("final report missing; sent = %#v edited = %#v", h.chat.Sent(), h.chat.Edited())
	}
	if !h.chat.Contains("channel -100123456789") {
		t.Fatal("warning does not name the channel")
	}
	if h.sess.Disconnects() != 1 {
		t.Fatalf("Disconnect() calls = %d, want 1", h.sess.Disconnects())
	}
	if len(h.userSide.Deleted()) != 3 || len(h.bot.Deleted()) != 0 {
		t.Fatal("deletion ran on the wrong client")
	}
	h.assertBackAtMenu(t)
}

func TestUserModeRejectsInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answers []string
		want    string
	}{
		{name: "api id", answers: []string{"abc"}, want: "❌ Error: API ID must be a number"},
		{name: "api hash", answers: []string{"1", "XYZ"}, want: "❌ Error: Invalid API HASH format"},
		{
			name:    "phone",
			answers: []string{"1", "0123456789abcdef0123456789abcdef", "12"},
			want:    "❌ Error: Invalid phone number",
		},
		{
			name:    "channel",
			answers: []string{"1", "0123456789abcdef0123456789abcdef", "+12345678901", "100"},
			want:    "❌ Error: Channel ID must be negative (e.g., -100123456789)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(time.Second)
			h.reply(tt.answers...)

			if got := h.ctl.RunUserMode(context.Background(), alice, h.chat); got != flows.OutcomeFailed {
				t.Fatalf("outcome = %v, want failed", got)
			}
			if !h.chat.Contains(tt.want) {
				t.Fatalf("missing %q; sent = %#v", tt.want, h.chat.Sent())
			}
			if h.connector.Calls() != 0 {
				t.Fatal("secondary session opened despite invalid input")
			}
			h.assertBackAtMenu(t)
		})
	}
}

func TestUserModeCancellation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answers []string
	}{
		{name: "confirmation mismatch", answers: append(append([]string{}, userAnswers...), "confirm")},
		{name: "cancel at code prompt", answers: append(append([]string{}, userAnswers[:4]...), "/cancel")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(time.Second)
			h.reply(tt.answers...)

			if got := h.ctl.RunUserMode(context.Background(), alice, h.chat); got != flows.OutcomeCancelled {
				t.Fatalf("outcome = %v, want cancelled", got)
			}
			if !h.chat.Contains("❌ Deletion cancelled") {
				t.Fatal("cancellation notice missing")
			}
			if h.chat.Contains("❌ Error") {
				t.Fatal("cancellation reported as failure")
			}
			if h.sess.Disconnects() != 1 {
				t.Fatalf("Disconnect() calls = %d, want 1", h.sess.Disconnects())
			}
			if len(h.userSide.Deleted()) != 0 {
				t.Fatal("messages deleted without confirmation")
			}
			h.assertBackAtMenu(t)
		})
	}
}

func TestUserModeExternalCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(time.Minute)
	h.reply(userAnswers[:4]...)

	done := make(chan flows.Outcome, 1)
	go func() { done <- h.ctl.RunUserMode(context.Background(), alice, h.chat) }()

	for !h.chat.Contains("Enter the 5-digit code") {
		time.Sleep(time.Millisecond)
	}
	conv := h.reg.Conversation(alice.ID)
	for conv.State() != conversation.Awaiting {
		time.Sleep(time.Millisecond)
	}
	h.reg.Cancel(alice.ID)

	select {
	case got := <-done:
		if got != flows.OutcomeInterrupted {
			t.Fatalf("outcome = %v, want interrupted", got)
		}
	case <-time.After(time.Second):
		t.Fatal("flow did not stop after cancel")
	}
	if h.sess.Disconnects() != 1 {
		t.Fatalf("Disconnect() calls = %d, want 1", h.sess.Disconnects())
	}
	if h.chat.Menus() != 0 {
		t.Fatal("flow re-showed the menu after an external cancel")
	}
	if _, ok := h.reg.Stage(alice.ID); ok {
		t.Fatal("flow restored state after an external cancel")
	}
}

func TestUserModeChannelAccessDenied(t *testing.T) {
	t.Parallel()

	h := newHarness(time.Second)
	h.userSide.ResolveErr = errors.New("CHANNEL_PRIVATE")
	h.reply(userAnswers...)

	if got := h.ctl.RunUserMode(context.Background(), alice, h.chat); got != flows.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	if !h.chat.Contains("❌ Error: Channel access denied") {
		t.Fatalf("sent = %#v", h.chat.Sent())
	}
	if h.sess.Disconnects() != 1 {
		t.Fatalf("Disconnect() calls = %d, want 1", h.sess.Disconnects())
	}
}

func TestAdminModeDeletesChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(time.Second)
	h.bot.Perms = backend.Permissions{IsAdmin: true, DeleteMessages: true}
	h.reply("-100987654321", "Confirm Admin Delete")

	if got := h.ctl.RunAdminMode(context.Background(), alice, h.chat); got != flows.OutcomeDone {
		t.Fatalf("outcome = %v, want done", got)
	}
	if !h.chat.Contains("ALL messages in My Channel") {
		t.Fatal("warning does not show the channel title")
	}
	if !h.chat.Contains("✅ Deleted 3 messages using admin privileges!") {
		t.Fatalf("final report missing; edited = %#v", h.chat.Edited())
	}
	if h.connector.Calls() != 0 {
		t.Fatal("admin mode opened a secondary session")
	}
	h.assertBackAtMenu(t)
}

func TestAdminModeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(*backendtest.Client)
		want    string
	}{
		{
			name:    "not admin",
			prepare: func(c *backendtest.Client) {},
			want:    "❌ Admin mode error: Missing admin permissions: admin status, delete messages",
		},
		{
			name: "admin without delete right",
			prepare: func(c *backendtest.Client) {
				c.Perms = backend.Permissions{IsAdmin: true}
			},
			want: "❌ Admin mode error: Missing admin permissions: delete messages",
		},
		{
			name: "channel unreachable",
			prepare: func(c *backendtest.Client) {
				c.ResolveErr = errors.New("CHANNEL_INVALID")
			},
			want: "❌ Admin mode error: Channel not found/access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(time.Second)
			tt.prepare(h.bot)
			h.reply("-100987654321")

			if got := h.ctl.RunAdminMode(context.Background(), alice, h.chat); got != flows.OutcomeFailed {
				t.Fatalf("outcome = %v, want failed", got)
			}
			if !h.chat.Contains(tt.want) {
				t.Fatalf("missing %q; sent = %#v", tt.want, h.chat.Sent())
			}
			if len(h.bot.Deleted()) != 0 {
				t.Fatal("messages deleted despite failure")
			}
			h.assertBackAtMenu(t)
		})
	}
}

func TestAdminModeCreatorPasses(t *testing.T) {
	t.Parallel()

	h := newHarness(time.Second)
	h.bot.Perms = backend.Permissions{IsCreator: true}
	h.reply("-100987654321", "CONFIRM ADMIN DELETE")

	if got := h.ctl.RunAdminMode(context.Background(), alice, h.chat); got != flows.OutcomeDone {
		t.Fatalf("outcome = %v, want done", got)
	}
}

func TestFlowTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(20 * time.Millisecond)

	if got := h.ctl.RunAdminMode(context.Background(), alice, h.chat); got != flows.OutcomeTimedOut {
		t.Fatalf("outcome = %v, want timed out", got)
	}
	if !h.chat.Contains(conversation.TimeoutNotice) {
		t.Fatal("timeout notice missing")
	}
	if h.chat.Contains("❌") {
		t.Fatal("timeout reported as an error")
	}
	h.assertBackAtMenu(t)
}

func TestMenuText(t *testing.T) {
	t.Parallel()

	if got := flows.MenuText(alice, ""); got[:len("👋 Welcome Alice!\n")] != "👋 Welcome Alice!\n" {
		t.Fatalf("MenuText() = %q", got)
	}
	rows := flows.MenuButtons()
	if len(rows) != 2 || rows[0][0].Data != flows.ActionUserMode || rows[0][1].Data != flows.ActionAdminMode ||
		rows[1][0].Data != flows.ActionHelp {
		t.Fatalf("MenuButtons() = %#v", rows)
	}
}
