package remote

import (
	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// Frame types. Requests from the client carry an id that the server echoes
// in the matching ack or error; snapshot frames carry the subscription id.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameCommit      = "commit"
	frameGet         = "get"
	frameRegister    = "register"
	frameSnapshot    = "snapshot"
	framePush        = "push"
	frameAck         = "ack"
	frameError       = "error"
)

const (
	collectionConversations = "conversations"
	collectionMessages      = "messages"
)

type query struct {
	Collection     string `json:"collection"`
	Participant    string `json:"participant,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Query          *query          `json:"query,omitempty"`
	Batch          *docstore.Batch `json:"batch,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`

	Conversations []models.Conversation `json:"conversations,omitempty"`
	Messages      []models.Message      `json:"messages,omitempty"`
	Conversation  *models.Conversation  `json:"conversation,omitempty"`
	Push          *models.PushMessage   `json:"push,omitempty"`
	Token         string                `json:"token,omitempty"`

	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error codes carried by error frames.
const (
	codeNotFound       = "not_found"
	codeNotParticipant = "not_participant"
	codeValidation     = "validation"
	codeUnauthorized   = "unauthorized"
	codeInternal       = "internal"
)

var codes = []struct {
	code string
	err  error
}{
	{codeNotFound, common.ErrorNotFound},
	{codeNotParticipant, common.ErrorNotParticipant},
	{codeValidation, common.ErrorValidation},
	{codeUnauthorized, common.ErrorUnauthorized},
}

// ServerError is an error frame returned by the store.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return "docstore: " + e.Message
}

func (e *ServerError) Unwrap() error {
	for _, c := range codes {
		if c.code == e.Code {
			return c.err
		}
	}
	return nil
}

func (f frame) err() error {
	return &ServerError{Code: f.Code, Message: f.Error}
}
