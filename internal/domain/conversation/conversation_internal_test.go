package conversation

import (
	"context"
	"testing"
	"time"
)

func TestDeliverAcceptsOneReplyPerAwait(t *testing.T) {
	t.Parallel()

	c := New(nil, time.Minute)
	c.state = Awaiting

	if !c.Deliver("first") {
		t.Fatal("Deliver() rejected a reply to the pending question")
	}
	if c.State() != Open {
		t.Fatalf("state after accepted reply = %v, want open", c.State())
	}
	if c.Deliver("second") {
		t.Fatal("Deliver() accepted a second reply to the same question")
	}

	got, err := c.Await(context.Background())
	if err != nil || got != "first" {
		t.Fatalf("Await() = %q, %v, want first", got, err)
	}
}
