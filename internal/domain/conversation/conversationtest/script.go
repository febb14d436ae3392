package conversationtest

import (
	"time"

	"tg-channel-cleaner/internal/domain/conversation"
)

// Answer поочерёдно доставляет ответы в диалог по мере того, как он их ждёт.
// Возвращённый канал закрывается, когда все ответы доставлены или диалог закрыт.
func Answer(conv *conversation.Conversation, answers ...string) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for _, a := range answers {
			for !conv.Deliver(a) {
				select {
				case <-conv.Done():
					return
				case <-time.After(time.Millisecond):
				}
			}
		}
	}()
	return finished
}
