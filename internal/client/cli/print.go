package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
)

func printItem(w io.Writer, n int, it models.FeedItem) {
	var flags []string
	if it.Liked {
		flags = append(flags, "liked")
	}
	if it.Shared {
		flags = append(flags, "shared")
	}
	if it.Editable {
		flags = append(flags, "yours")
	}
	line := fmt.Sprintf("[%d] @%s: %s", n, it.Username, it.Message)
	if len(flags) > 0 {
		line += "  (" + strings.Join(flags, ", ") + ")"
	}
	fmt.Fprintln(w, line)
}

func printProfile(w io.Writer, p *models.Profile) {
	fmt.Fprintf(w, "@%s (id %d)\n", p.Username, p.ID)
	fmt.Fprintf(w, "  email:        %s\n", p.Email)
	if p.Location != "" {
		fmt.Fprintf(w, "  location:     %s\n", p.Location)
	}
	if tags := p.InterestList(); len(tags) > 0 {
		fmt.Fprintf(w, "  interests:    %s\n", strings.Join(tags, ", "))
	}
	if p.Visibility != "" {
		fmt.Fprintf(w, "  visibility:   %s\n", p.Visibility)
	}
	if p.Verification != "" {
		fmt.Fprintf(w, "  verification: %s\n", p.Verification)
	}
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
