package telegram

import (
	"errors"
	"fmt"
	"strings"

	"licensekeys-bot/internal/license"
)

type op string

const (
	opList    op = "list"
	opStatus  op = "status"
	opSync    op = "sync"
	opAdd     op = "add"
	opRemove  op = "remove"
	opHistory op = "history"
	opHelp    op = "help"
	opGive    op = "give"
)

type command struct {
	op    op
	key   string
	class license.Class
}

// usageError carries the reply for a command that could not be parsed.
// It never reaches a store.
type usageError struct {
	msg  string
	info bool
}

func (e *usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// parseCommand splits a chat message into a command. ok is false when the
// message is not addressed to the bot at all.
func parseCommand(prefix, text string) (cmd command, ok bool, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return command{}, false, nil
	}
	head := stripMention(fields[0])
	args := fields[1:]

	switch head {
	case prefix + "licensekeys":
		cmd, err = parseLicenseKeys(prefix, args)
		return cmd, true, err
	case prefix + "give":
		cmd, err = parseGive(prefix, args)
		return cmd, true, err
	}
	return command{}, false, nil
}

func parseLicenseKeys(prefix string, args []string) (command, error) {
	if len(args) == 0 {
		return command{}, &usageError{
			msg:  fmt.Sprintf("Please specify a command. Use %slicensekeys help to see available commands.", prefix),
			info: true,
		}
	}
	sub := strings.ToLower(args[0])
	key := strings.Join(args[1:], " ")

	switch sub {
	case "list":
		return command{op: opList}, nil
	case "sync":
		return command{op: opSync}, nil
	case "help":
		return command{op: opHelp}, nil
	case "history":
		return command{op: opHistory}, nil
	case "status":
		if key == "" {
			return command{}, usage("Please provide a license key to check.\n\nUsage: %slicensekeys status <key>", prefix)
		}
		return command{op: opStatus, key: key}, nil
	case "add":
		if key == "" {
			return command{}, usage("Please provide a license key to add.\n\nUsage: %slicensekeys add <key>", prefix)
		}
		return command{op: opAdd, key: key}, nil
	case "remove", "delete":
		if key == "" {
			return command{}, usage("Please provide a license key to remove.\n\nUsage: %slicensekeys remove <key>", prefix)
		}
		return command{op: opRemove, key: key}, nil
	}
	return command{}, usage("Unknown command. Use %slicensekeys help to see available commands.", prefix)
}

func parseGive(prefix string, args []string) (command, error) {
	if len(args) == 0 || strings.ToLower(args[0]) != "licensekey" {
		return command{}, usage("Invalid command. Usage: %sgive licensekey <monthly/lifetime>", prefix)
	}
	if len(args) < 2 {
		return command{}, usage("Please specify the license type: monthly or lifetime.\n\nUsage: %sgive licensekey <monthly/lifetime>", prefix)
	}
	c, err := license.ParseClass(args[1])
	if err != nil {
		return command{}, usage("Please specify the license type: monthly or lifetime.\n\nUsage: %sgive licensekey <monthly/lifetime>", prefix)
	}
	return command{op: opGive, class: c}, nil
}

// stripMention turns "/licensekeys@my_bot" into "/licensekeys".
func stripMention(word string) string {
	if i := strings.IndexByte(word, '@'); i > 0 {
		return word[:i]
	}
	return word
}

func isUsage(err error) (*usageError, bool) {
	var ue *usageError
	ok := errors.As(err, &ue)
	return ue, ok
}
