package telegram

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/ledger"
	"licensekeys-bot/internal/pool"
	"licensekeys-bot/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func (f *fakeSender) texts() []string {
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type harness struct {
	bot   *Bot
	out   *fakeSender
	pool  *pool.FileStore
	store *store.BBoltStore
}

func newHarness(t *testing.T, export string, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledgerPath := filepath.Join(dir, "keyauth_licenses.json")
	if export != "" {
		require.NoError(t, os.WriteFile(ledgerPath, []byte(export), 0o600))
	}
	st, err := store.OpenBBolt(filepath.Join(dir, "licensebot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ps := pool.NewFileStore(filepath.Join(dir, "licenseKeys.json"), logger)
	svc := inventory.NewService(inventory.Dependencies{
		Ledger:  ledger.NewFile(ledgerPath, logger),
		Pool:    ps,
		Journal: st,
		Logger:  logger,
	})
	out := &fakeSender{}
	opts.Logger = logger
	return &harness{bot: newBot(nil, out, svc, opts), out: out, pool: ps, store: st}
}

func (h *harness) send(text string) {
	h.bot.handleMessage(&tgbotapi.Message{
		MessageID: 99,
		From:      &tgbotapi.User{ID: 5, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
	})
}

func (h *harness) last() string {
	texts := h.out.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
		want command
		err  string
	}{
		{"hello there", false, command{}, ""},
		{".licensekeysx list", false, command{}, ""},
		{".licensekeys list", true, command{op: opList}, ""},
		{".licensekeys SYNC", true, command{op: opSync}, ""},
		{".licensekeys status ABCD-1234", true, command{op: opStatus, key: "ABCD-1234"}, ""},
		{".licensekeys delete K 1", true, command{op: opRemove, key: "K 1"}, ""},
		{".licensekeys add K3", true, command{op: opAdd, key: "K3"}, ""},
		{".give licensekey Lifetime", true, command{op: opGive, class: "lifetime"}, ""},
		{".licensekeys", true, command{}, "Please specify a command"},
		{".licensekeys frobnicate", true, command{}, "Unknown command"},
		{".licensekeys status", true, command{}, "provide a license key to check"},
		{".licensekeys add", true, command{}, "provide a license key to add"},
		{".licensekeys remove", true, command{}, "provide a license key to remove"},
		{".give", true, command{}, "Invalid command"},
		{".give licensekey", true, command{}, "specify the license type"},
		{".give licensekey weekly", true, command{}, "specify the license type"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok, err := parseCommand(".", tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseCommand_SlashPrefixWithMention(t *testing.T) {
	cmd, ok, err := parseCommand("/", "/licensekeys@key_bot sync")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, opSync, cmd.op)
}

func TestFormatList_Chunks(t *testing.T) {
	keys := make([]string, 130)
	for i := range keys {
		keys[i] = "K"
	}

	chunks := formatList(keys)
	require.Len(t, chunks, 4)
	assert.Contains(t, chunks[0], "Total: 130 keys")
	assert.Contains(t, chunks[0], "1. K")
	assert.Contains(t, chunks[3], "100. K")
	assert.NotContains(t, chunks[3], "101. K")
}

func TestBot_SyncGiveStatus(t *testing.T) {
	h := newHarness(t, `[{"key":"K1","status":"Not Used","expiry":"2592000"},{"key":"L1","status":"Not Used","expiry":"315569260"}]`, Options{})

	h.send(".licensekeys sync")
	assert.Contains(t, h.last(), "Monthly keys: 1")
	assert.Contains(t, h.last(), "Lifetime keys: 1")

	h.send(".give licensekey monthly")
	assert.Contains(t, h.last(), "<code>K1</code>")
	assert.Equal(t, 99, h.out.sent[len(h.out.sent)-1].ReplyToMessageID)

	h.send(".give licensekey monthly")
	assert.Contains(t, h.last(), "No monthly license keys available")

	h.send(".licensekeys status k1")
	assert.Contains(t, h.last(), "Status: Used")
	assert.Contains(t, h.last(), "Type: Monthly")
	assert.Contains(t, h.last(), "Given to: alice")
	assert.Contains(t, h.last(), "Used on: ")

	h.send(".licensekeys history")
	assert.Contains(t, h.last(), "<code>K1</code>")
}

func TestBot_ListAddRemove(t *testing.T) {
	h := newHarness(t, `{"keys":[{"key":"A","status":"Not Used"},{"key":"B","status":"Used"}]}`, Options{})

	h.send(".licensekeys list")
	assert.Contains(t, h.last(), "Total: 1 keys")
	assert.Contains(t, h.last(), "1. A")

	h.send(".licensekeys add K3")
	assert.Contains(t, h.last(), "added successfully as monthly")
	h.send(".licensekeys add K3")
	assert.Contains(t, h.last(), "already stored")

	h.send(".licensekeys remove K3")
	assert.Contains(t, h.last(), "removed successfully")
	h.send(".licensekeys remove K3")
	assert.Contains(t, h.last(), "not found in local storage")
}

func TestBot_MissingExport(t *testing.T) {
	h := newHarness(t, "", Options{})

	h.send(".licensekeys sync")
	assert.Contains(t, h.last(), "Failed to sync keys")
	assert.Contains(t, h.last(), "No license export file found")

	h.send(".licensekeys status K1")
	assert.Contains(t, h.last(), "No license export file found")
}

func TestBot_UsageErrorsTouchNoStore(t *testing.T) {
	h := newHarness(t, `[]`, Options{})

	h.send(".licensekeys nope")
	assert.Contains(t, h.last(), "Unknown command")
	h.send(".licensekeys")
	assert.Contains(t, h.last(), "Please specify a command")
	assert.NotContains(t, h.last(), "<b>Error</b>")

	_, err := os.Stat(h.pool.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBot_IgnoresBotsAndChatter(t *testing.T) {
	h := newHarness(t, `[]`, Options{})

	h.bot.handleMessage(&tgbotapi.Message{From: &tgbotapi.User{IsBot: true}, Chat: &tgbotapi.Chat{ID: 1}, Text: ".licensekeys help"})
	h.send("good morning")

	assert.Empty(t, h.out.sent)
}

func TestBot_RejectsNonAdminChats(t *testing.T) {
	h := newHarness(t, `[]`, Options{IsAdmin: func(id int64) bool { return id == 1 }})

	h.send(".licensekeys help")
	assert.Contains(t, h.last(), "admin chats")
}

func TestBot_HelpUsesPrefix(t *testing.T) {
	h := newHarness(t, `[]`, Options{Prefix: "!"})

	h.send("!licensekeys help")
	assert.True(t, strings.Contains(h.last(), "!give licensekey"))
}
