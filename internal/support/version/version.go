// Package version хранит версию сборки; значение подставляется через
// -ldflags "-X tg-channel-cleaner/internal/support/version.Version=...".
package version

// Version — версия бинаря, "dev" для локальных сборок.
var Version = "dev"
