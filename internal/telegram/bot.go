package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/license"
	"licensekeys-bot/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Inventory is the set of key operations the chat surface exposes.
type Inventory interface {
	Reconcile() (inventory.SyncResult, error)
	Allocate(c license.Class, to inventory.Recipient) (inventory.Allocation, error)
	Status(key string) (inventory.KeyStatus, error)
	AddKey(key string) (license.Class, error)
	RemoveKey(key string) (license.Class, error)
	ListUnused() ([]string, error)
	Recent(limit int) ([]store.Dispensation, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Options struct {
	Prefix  string
	IsAdmin func(chatID int64) bool
	Logger  *slog.Logger
}

type Bot struct {
	api     *tgbotapi.BotAPI
	out     sender
	inv     Inventory
	prefix  string
	isAdmin func(chatID int64) bool
	logger  *slog.Logger
}

func NewBot(token string, inv Inventory, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return newBot(api, api, inv, opts), nil
}

func newBot(api *tgbotapi.BotAPI, out sender, inv Inventory, opts Options) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = "."
	}
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bot{api: api, out: out, inv: inv, prefix: opts.Prefix, isAdmin: opts.IsAdmin, logger: opts.Logger}
}

// Username is the account the token logged in as.
func (b *Bot) Username() string {
	if b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// Run long-polls for updates and handles messages one at a time until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	upd := tgbotapi.NewUpdate(0)
	upd.Timeout = 30
	updates := b.api.GetUpdatesChan(upd)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if u.Message != nil {
				b.handleMessage(u.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(m *tgbotapi.Message) {
	if m.From != nil && m.From.IsBot {
		return
	}
	cmd, ok, err := parseCommand(b.prefix, strings.TrimSpace(m.Text))
	if !ok {
		return
	}
	chatID := m.Chat.ID
	if !b.isAdmin(chatID) {
		b.replyError(m, "This bot only accepts commands from admin chats.")
		return
	}
	if err != nil {
		if ue, ok := isUsage(err); ok && ue.info {
			b.reply(m, html.EscapeString(ue.msg))
			return
		}
		b.replyError(m, html.EscapeString(err.Error()))
		return
	}

	b.logger.Debug("command received", "op", cmd.op, "chat_id", chatID)
	switch cmd.op {
	case opList:
		b.cmdList(m)
	case opStatus:
		b.cmdStatus(m, cmd.key)
	case opSync:
		b.cmdSync(m)
	case opAdd:
		b.cmdAdd(m, cmd.key)
	case opRemove:
		b.cmdRemove(m, cmd.key)
	case opHistory:
		b.cmdHistory(m)
	case opHelp:
		b.reply(m, helpText(b.prefix))
	case opGive:
		b.cmdGive(m, cmd.class)
	}
}

func (b *Bot) cmdList(m *tgbotapi.Message) {
	keys, err := b.inv.ListUnused()
	if err != nil {
		b.replyError(m, b.describe(err))
		return
	}
	if len(keys) == 0 {
		b.reply(m, "No unused license keys found in the export.")
		return
	}
	for _, chunk := range formatList(keys) {
		b.reply(m, chunk)
	}
}

func (b *Bot) cmdStatus(m *tgbotapi.Message, key string) {
	st, err := b.inv.Status(key)
	if err != nil {
		if errors.Is(err, license.ErrKeyNotFound) {
			b.replyError(m, "License key not found: "+code(key)+"\n\nMake sure the key is in the exported license file.")
			return
		}
		b.replyError(m, b.describe(err))
		return
	}
	b.reply(m, formatStatus(st))
}

func (b *Bot) cmdSync(m *tgbotapi.Message) {
	res, err := b.inv.Reconcile()
	if err != nil {
		b.replyError(m, "Failed to sync keys: "+b.describe(err))
		return
	}
	b.reply(m, fmt.Sprintf("Successfully synced keys from the export!\n\nMonthly keys: %d\nLifetime keys: %d\n\nUsed keys were automatically filtered out.", res.Monthly, res.Lifetime))
}

func (b *Bot) cmdAdd(m *tgbotapi.Message, key string) {
	c, err := b.inv.AddKey(key)
	if err != nil {
		if errors.Is(err, license.ErrDuplicateKey) {
			b.replyError(m, "This license key is already stored.")
			return
		}
		b.replyError(m, b.describe(err))
		return
	}
	b.reply(m, fmt.Sprintf("License key added successfully as %s!", c))
}

func (b *Bot) cmdRemove(m *tgbotapi.Message, key string) {
	if _, err := b.inv.RemoveKey(key); err != nil {
		if errors.Is(err, license.ErrKeyNotFound) {
			b.replyError(m, "License key not found in local storage.")
			return
		}
		b.replyError(m, b.describe(err))
		return
	}
	b.reply(m, "License key removed successfully!")
}

func (b *Bot) cmdHistory(m *tgbotapi.Message) {
	list, err := b.inv.Recent(historyLimit)
	if err != nil {
		b.replyError(m, b.describe(err))
		return
	}
	b.reply(m, formatHistory(list))
}

func (b *Bot) cmdGive(m *tgbotapi.Message, c license.Class) {
	alloc, err := b.inv.Allocate(c, recipientOf(m))
	if err != nil {
		if errors.Is(err, license.ErrPoolExhausted) {
			b.replyError(m, fmt.Sprintf("No %s license keys available in local storage.\n\nTip: Run %slicensekeys sync to sync keys from the export.", c, html.EscapeString(b.prefix)))
			return
		}
		b.replyError(m, b.describe(err))
		return
	}
	b.reply(m, fmt.Sprintf("<b>License Key Generated</b>\nType: %s\n\nKey: %s", alloc.Class.Title(), code(alloc.Key)))
}

// describe turns a core error into a user-facing sentence.
func (b *Bot) describe(err error) string {
	switch {
	case errors.Is(err, license.ErrLedgerMissing):
		return "No license export file found. Export licenses from the dashboard as JSON and place the file where the bot expects it."
	case errors.Is(err, license.ErrPersistFailed):
		return "Error saving license keys. Please try again."
	case errors.Is(err, license.ErrMalformedInput):
		return html.EscapeString(err.Error())
	}
	b.logger.Error("command failed", "error", err)
	return "Something went wrong. Please try again."
}

func recipientOf(m *tgbotapi.Message) inventory.Recipient {
	r := inventory.Recipient{ChatID: m.Chat.ID}
	if m.From != nil {
		r.Name = m.From.UserName
		if r.Name == "" {
			r.Name = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
		}
	}
	return r
}

func (b *Bot) replyError(m *tgbotapi.Message, text string) {
	b.reply(m, "<b>Error</b>\n"+text)
}

func (b *Bot) reply(m *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(m.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Warn("failed to send reply", "chat_id", m.Chat.ID, "error", err)
	}
}
