package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/notify"
)

// Notifications lists the records received in this session, newest first,
// with the command that opens their target. Listing marks them all read.
func (a *App) Notifications(ctx context.Context) error {
	if _, err := a.credential(); err != nil {
		return err
	}
	ch := a.runtime.Notifications()
	if ch == nil {
		a.warnOffline()
		return nil
	}
	if ch.Token() == "" {
		fmt.Fprintln(a.out, "Push delivery is not registered on this device.")
	}

	recs := ch.Records()
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No notifications.")
		return nil
	}
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		mark := " "
		if !r.Read {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s  %s: %s", mark, r.Date.Local().Format(time.DateTime), r.Title, r.Body)
		switch kind, id := notify.Route(r); kind {
		case notify.RouteConversation:
			line += "  -> open " + id
		case notify.RoutePost:
			line += "  -> snap " + id
		}
		fmt.Fprintln(a.out, line)
	}
	ch.MarkAsRead()
	return nil
}
