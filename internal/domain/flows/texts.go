package flows

import (
	"fmt"
	"strings"

	"tg-channel-cleaner/internal/domain/purge"
	"tg-channel-cleaner/internal/domain/validate"
)

const channelPrompt = "🆔 Enter channel ID (e.g., -100123456789):"

func trimReply(s string) string { return strings.TrimSpace(s) }

func isConfirmation(reply, phrase string) bool { return validate.IsConfirmation(reply, phrase) }

func failureText(format string, err error) string {
	return fmt.Sprintf(format, err.Error())
}

func progressText(r purge.Result) string {
	return fmt.Sprintf("⏳ Deleting... %d messages removed so far", r.Deleted)
}

func doneText(format string, r purge.Result) string {
	text := fmt.Sprintf(format, r.Deleted)
	if r.Failed > 0 || r.Skipped > 0 {
		text += fmt.Sprintf("\n(%d failed, %d skipped due to flood wait)", r.Failed, r.Skipped)
	}
	return text
}
