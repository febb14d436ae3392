// Package pr — помощники отладочного вывода: pretty-печать апдейтов и ответов
// MTProto в лог и в stdout.
package pr

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kr/pretty"
)

var (
	// out — текущий поток вывода PP. По умолчанию os.Stdout.
	out io.Writer = os.Stdout
	mu  sync.Mutex
)

// SetOutput переназначает поток для PP. nil возвращает os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// PP pretty-печатает значение в текущий поток. Только для отладки.
func PP(v any) {
	mu.Lock()
	w := out
	mu.Unlock()
	fmt.Fprintf(w, "%# v\n", pretty.Formatter(v))
}

// Pf возвращает pretty-строку значения. Полезно для debug-логов.
func Pf(v any) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}
