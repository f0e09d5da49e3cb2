package conversation

import (
	"strings"

	"github.com/Proton-105/ledger-bot/internal/state"
)

const statusCallbackPrefix = "status:"

// StatusCallbackData is the inline button payload that selects status.
func StatusCallbackData(status state.Status) string {
	return statusCallbackPrefix + string(status)
}

// parseStatusCallback extracts the label of a status:<label> payload. ok is false for other payloads.
func parseStatusCallback(data string) (label string, ok bool) {
	rest, found := strings.CutPrefix(data, statusCallbackPrefix)
	if !found {
		return "", false
	}

	label, _, _ = strings.Cut(rest, ":")
	return label, true
}
