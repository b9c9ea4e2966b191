package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/client/realtime"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// Chats lists the user's conversations, most recent first. A star marks
// the ones holding messages the user has not seen.
func (a *App) Chats(ctx context.Context) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	if err := eng.LastError(); err != nil {
		fmt.Fprintf(a.out, "Chat updates stopped (%s); showing the last known list.\n", client.MessageOf(err))
	}

	me := eng.User()
	convs := eng.Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(a.out, "No conversations yet. Start one with: send <user> <text>")
		return nil
	}
	for _, c := range convs {
		mark := " "
		if realtime.DeriveUnread([]models.Conversation{c}, me) {
			mark = "*"
		}
		last := ""
		if c.LastMessage != nil {
			last = c.LastMessage.Text
		}
		fmt.Fprintf(a.out, "%s %s  with %s  %s  %s\n", mark, c.ID, c.Peer(me), c.UpdatedAt.Local().Format(time.DateTime), last)
	}
	return nil
}

// Open prints a conversation, oldest message first, and marks it read.
// The argument is a conversation id or the id of the other user.
func (a *App) Open(ctx context.Context, args []string) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("open <conversation|user>")
	}
	id, err := a.conversationID(eng, args[0])
	if err != nil {
		return err
	}

	ms, err := eng.OpenConversation(ctx, id)
	if err != nil {
		return err
	}
	defer ms.Close()

	timer := time.NewTimer(a.wait())
	defer timer.Stop()
	select {
	case <-ms.Ready():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if err := ms.Err(); err != nil {
			return err
		}
		return fmt.Errorf("conversation %s: %w", id, common.ErrorUnavailable)
	}

	msgs := ms.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No messages yet.")
		return nil
	}
	me := eng.User()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		who := m.Sender
		if who == me {
			who = "you"
		}
		fmt.Fprintf(a.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), who, m.Text)
	}

	if err := eng.MarkConversationRead(ctx, id); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

// Send delivers a message to another user, creating the conversation on
// first contact. A conversation id is accepted in place of the user.
func (a *App) Send(ctx context.Context, args []string) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return usage("send <user> <text>")
	}
	to, text := args[0], joinArgs(args[1:])

	if strings.Contains(to, realtime.Separator) {
		if err := eng.SendToConversation(ctx, to, text); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Sent.")
		return nil
	}
	id, err := eng.SendMessage(ctx, to, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent (%s).\n", id)
	return nil
}

func (a *App) Read(ctx context.Context, args []string) error {
	eng, err := a.engine()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("read <conversation|user>")
	}
	id, err := a.conversationID(eng, args[0])
	if err != nil {
		return err
	}
	if err := eng.MarkConversationRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Marked as read.")
	return nil
}

// conversationID accepts a conversation id as is and derives one from a
// peer user id otherwise.
func (a *App) conversationID(eng *realtime.Engine, arg string) (string, error) {
	if strings.Contains(arg, realtime.Separator) {
		return arg, nil
	}
	return realtime.ConversationID(eng.User(), arg)
}
