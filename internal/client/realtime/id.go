package realtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// Separator joins the two participant ids of a conversation id. It may not
// appear inside a user id, which keeps the mapping collision free.
const Separator = "_"

// ConversationID derives the id of the conversation between a and b. The
// result does not depend on argument order.
func ConversationID(a, b string) (string, error) {
	if err := checkUserID(a); err != nil {
		return "", err
	}
	if err := checkUserID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("%w: conversation with oneself", common.ErrorInvalidIdentifier)
	}
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, Separator), nil
}

// Participants splits a conversation id back into its two user ids.
func Participants(conversationID string) (string, string, error) {
	a, b, ok := strings.Cut(conversationID, Separator)
	if !ok || checkUserID(a) != nil || checkUserID(b) != nil || a >= b {
		return "", "", fmt.Errorf("%w: conversation id %q", common.ErrorInvalidIdentifier, conversationID)
	}
	return a, b, nil
}

func checkUserID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty user id", common.ErrorInvalidIdentifier)
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: user id %q contains %q", common.ErrorInvalidIdentifier, id, Separator)
	}
	return nil
}

// DeriveUnread reports whether any conversation holds a message user has
// not yet seen: unread > 0 and the last message came from someone else.
func DeriveUnread(convs []models.Conversation, user string) bool {
	for _, c := range convs {
		if c.UnreadCount > 0 && c.LastMessage != nil && c.LastMessage.Sender != user {
			return true
		}
	}
	return false
}
