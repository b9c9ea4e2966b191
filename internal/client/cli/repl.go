package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Report(ctx context.Context, err error)

	Register(ctx context.Context) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context, args []string) error

	Feed(ctx context.Context, args []string) error
	Post(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Like(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Stats(ctx context.Context, args []string) error
	Follow(ctx context.Context, args []string) error
	Unfollow(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error

	Chats(ctx context.Context) error
	Open(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Read(ctx context.Context, args []string) error
	Notifications(ctx context.Context) error
}

const (
	guestHelp  = "Available commands: register, login [google <token>], help, exit"
	signedHelp = "Available commands: whoami, profile [set <field> <value> | verify], feed [mine] [page], post, " +
		"edit <n>, delete <n>, like <n>, share <n>, stats [n], follow <user>, unfollow <user>, " +
		"search [users|tag] <text>, chats, open <conversation|user>, send <user> <text>, read <conversation>, " +
		"notifications, logout, help, exit"
)

// runREPL starts a simple read–eval–print loop for the snapclient CLI.
//
// It reads a line from in, writes prompts and help to w, parses the first token as the command, and
// dispatches to methods on 'a'. Command prompts read from the same reader,
// so a handler can ask follow-up questions. The loop exits on EOF, when ctx
// is done, or when the user types "exit" or "quit".
//
// A handler error is handed to a.Report, which renders it and applies the
// global reaction (an expired session signs the user out).
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "snap %s > \n", statusFn())
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(w, "Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args, w); err != nil {
			a.Report(ctx, err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, w io.Writer) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			fmt.Fprintln(w, signedHelp)
		} else {
			fmt.Fprintln(w, guestHelp)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx, args)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "profile":
		return a.Profile(ctx, args)
	case "feed":
		return a.Feed(ctx, args)
	case "post":
		return a.Post(ctx)
	case "edit":
		return a.Edit(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "like":
		return a.Like(ctx, args)
	case "share":
		return a.Share(ctx, args)
	case "stats":
		return a.Stats(ctx, args)
	case "follow":
		return a.Follow(ctx, args)
	case "unfollow":
		return a.Unfollow(ctx, args)
	case "search":
		return a.Search(ctx, args)
	case "chats":
		return a.Chats(ctx)
	case "open":
		return a.Open(ctx, args)
	case "send":
		return a.Send(ctx, args)
	case "read":
		return a.Read(ctx, args)
	case "notifications", "n":
		return a.Notifications(ctx)
	default:
		fmt.Fprintln(w, "Unknown command:", cmd)
		return nil
	}
}
