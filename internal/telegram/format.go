package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/store"
)

const (
	listChunkSize = 25
	listMaxChunks = 4
	historyLimit  = 10
)

// formatList numbers keys and splits them into at most listMaxChunks
// messages of listChunkSize lines. The first message carries the total.
func formatList(keys []string) []string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%d. %s", i+1, k)
	}

	var out []string
	for i := 0; i < len(lines) && len(out) < listMaxChunks; i += listChunkSize {
		end := min(i+listChunkSize, len(lines))
		body := "<pre>" + html.EscapeString(strings.Join(lines[i:end], "\n")) + "</pre>"
		if len(out) == 0 {
			body = fmt.Sprintf("<b>Your License Keys</b>\nTotal: %d keys\n%s", len(keys), body)
		}
		out = append(out, body)
	}
	return out
}

func formatStatus(st inventory.KeyStatus) string {
	lines := []string{
		"<b>License Key Status</b>",
		"Key: " + code(st.Key),
		"Status: " + html.EscapeString(st.Status.String()),
		"Type: " + st.Class.Title(),
	}
	if !st.UsedAt.IsZero() {
		lines = append(lines, "Used on: "+st.UsedAt.Format(time.RFC3339))
	}
	if d := st.Dispensation; d != nil {
		lines = append(lines, fmt.Sprintf("Given to: %s on %s", html.EscapeString(recipientLabel(*d)), d.DispensedAt.Format(time.RFC3339)))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(list []store.Dispensation) string {
	if len(list) == 0 {
		return "No license keys have been given out yet."
	}
	lines := []string{"<b>Recently given keys</b>"}
	for _, d := range list {
		mark := ""
		if !d.LedgerMarked {
			mark = " (not marked in export)"
		}
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | %s%s",
			code(d.Key), d.Class.Title(), html.EscapeString(recipientLabel(d)), d.DispensedAt.Format(time.RFC3339), mark))
	}
	return strings.Join(lines, "\n")
}

func helpText(prefix string) string {
	p := html.EscapeString(prefix)
	return strings.Join([]string{
		"<b>License Keys Bot Commands</b>",
		p + "licensekeys list - show unused keys from the export (25 per message, up to 4 messages)",
		p + "licensekeys status &lt;key&gt; - status and type of a key",
		p + "licensekeys sync - rebuild local storage from the export (used keys are filtered out)",
		p + "licensekeys add &lt;key&gt; - add a key to local storage (type is detected)",
		p + "licensekeys remove &lt;key&gt; - remove a key from local storage",
		p + "licensekeys history - recently given keys",
		p + "give licensekey &lt;monthly/lifetime&gt; - take a random key of that type",
		p + "licensekeys help - this message",
		"",
		"list and status read the export file directly. Use sync to store unused keys locally.",
	}, "\n")
}

func recipientLabel(d store.Dispensation) string {
	if d.Recipient != "" {
		return d.Recipient
	}
	if d.ChatID != 0 {
		return fmt.Sprintf("chat %d", d.ChatID)
	}
	return "-"
}

func code(s string) string {
	return "<code>" + html.EscapeString(s) + "</code>"
}
