package mtproto

import (
	"github.com/go-faster/errors"
	"github.com/gotd/td/tgerr"

	"tg-channel-cleaner/internal/domain/backend"
)

// WrapRPC оборачивает ошибку вызова op. FLOOD_WAIT и FLOOD_PREMIUM_WAIT
// превращаются в *backend.FloodWaitError с обязательной паузой из ответа сервера.
func WrapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, op)
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &backend.FloodWaitError{Wait: wait, Err: wrapped}
	}
	return wrapped
}
