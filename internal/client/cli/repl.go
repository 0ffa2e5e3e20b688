package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Sessions(ctx context.Context) error
	Revoke(ctx context.Context, sessionID string) error
	Dashboard(ctx context.Context) error
	Profile(ctx context.Context) error
	SetProfile(ctx context.Context, field, value string) error
	UploadAvatar(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a
// until EOF, "exit"/"quit" or ctx cancellation. Command errors are reported
// and the loop continues. Prompts inside commands share the same reader.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("med %s> ", statusFn()))
		line, readErr := reader.ReadString('\n')
		if readErr != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: dashboard, sessions, revoke <id>, profile, setprofile <field> <value>, avatar <path>, passwd, ping, logout, exit")
			} else {
				printlnFn("Available commands: register, login, ping, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "passwd":
			err = a.ChangePassword(ctx)

		case "sessions":
			err = a.Sessions(ctx)

		case "revoke":
			if len(args) != 1 {
				printlnFn("Usage: revoke <session id>")
				continue
			}
			err = a.Revoke(ctx, args[0])

		case "dashboard":
			err = a.Dashboard(ctx)

		case "profile":
			err = a.Profile(ctx)

		case "setprofile":
			if len(args) < 2 {
				printlnFn("Usage: setprofile <field> <value>")
				continue
			}
			err = a.SetProfile(ctx, args[0], strings.Join(args[1:], " "))

		case "avatar":
			if len(args) != 1 {
				printlnFn("Usage: avatar <image path>")
				continue
			}
			err = a.UploadAvatar(ctx, args[0])

		case "ping":
			err = a.Ping(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
