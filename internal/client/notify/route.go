package notify

import "github.com/dmitrijs2005/snapclient/internal/client/models"

type RouteKind int

const (
	RouteNone RouteKind = iota
	RoutePost
	RouteConversation
)

func (k RouteKind) String() string {
	switch k {
	case RoutePost:
		return "post"
	case RouteConversation:
		return "conversation"
	default:
		return "none"
	}
}

// Route tells where opening rec should lead. A conversation reference wins
// over a post reference; with neither the record has no target.
func Route(rec models.NotificationRecord) (RouteKind, string) {
	if id := rec.Data[models.DataKeyConversationID]; id != "" {
		return RouteConversation, id
	}
	if id := rec.Data[models.DataKeyPostID]; id != "" {
		return RoutePost, id
	}
	return RouteNone, ""
}
