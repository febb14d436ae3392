// Package validate — чистые проверки пользовательского ввода в диалогах:
// телефон, ID канала, учётные данные приложения, код входа и фраза подтверждения.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"tg-channel-cleaner/internal/domain/faults"
)

var (
	phoneRe   = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
	appHashRe = regexp.MustCompile(`^[a-f0-9]{32}$`)
	codeRe    = regexp.MustCompile(`^\d{5}$`)
)

// Phone проверяет номер: необязательный '+', первая цифра 1–9, всего 8–15 цифр.
func Phone(text string) bool {
	return phoneRe.MatchString(text)
}

// ChannelID разбирает ID канала. ID каналов всегда отрицательные (-100...).
func ChannelID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, faults.Invalid("channel_id", "Invalid Channel ID format")
	}
	if id >= 0 {
		return 0, faults.Invalid("channel_id", "Channel ID must be negative (e.g., -100123456789)")
	}
	return id, nil
}

// AppID разбирает API_ID: только цифры, строго положительное значение.
func AppID(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.TrimLeft(text, "0123456789") != "" {
		return 0, faults.Invalid("api_id", "API ID must be a number")
	}
	id, err := strconv.Atoi(text)
	if err != nil || id <= 0 {
		return 0, faults.Invalid("api_id", "API ID must be a number")
	}
	return id, nil
}

// AppHash проверяет API_HASH: ровно 32 символа [a-f0-9].
func AppHash(text string) error {
	if !appHashRe.MatchString(text) {
		return faults.Invalid("api_hash", "Invalid API HASH format")
	}
	return nil
}

// LoginCode убирает пробелы ("1 2 3 4 5") и требует ровно 5 цифр.
func LoginCode(text string) (string, error) {
	code := strings.ReplaceAll(text, " ", "")
	if !codeRe.MatchString(code) {
		return "", faults.Invalid("code", "Invalid code format")
	}
	return code, nil
}

// IsConfirmation — регистронезависимое точное сравнение с фразой подтверждения.
func IsConfirmation(text, phrase string) bool {
	return strings.EqualFold(strings.TrimSpace(text), phrase)
}
