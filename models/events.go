package models

import "encoding/json"

// Channel event names, client->server and server->client.
const (
	EventNewFeeling     = "newFeeling"
	EventReceiveFeeling = "receiveFeeling"
	EventToggleLike     = "toggleLike"
	EventLikeUpdated    = "likeUpdated"
	EventNewComment     = "newComment"
	EventCommentAdded   = "commentAdded"
	EventError          = "error"
	EventConnected      = "connected"
)

// WSEnvelope frames every websocket message in both directions.
type WSEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewWSEnvelope(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSEnvelope{Event: event, Payload: raw})
}

// NewFeelingPayload - client->server newFeeling. ClientToken is the caller's
// correlation token, echoed back in the receiveFeeling broadcast so the
// originator can match its provisional entry without content heuristics.
type NewFeelingPayload struct {
	Text        string `json:"text"`
	Author      string `json:"author"`
	AuthorRole  Role   `json:"authorRole"`
	ClientToken string `json:"clientToken,omitempty"`
}

// ToggleLikePayload - client->server toggleLike
type ToggleLikePayload struct {
	FeelingID int64  `json:"feelingId"`
	UserID    string `json:"userId"`
	UserRole  Role   `json:"userRole"`
}

// NewCommentPayload - client->server newComment
type NewCommentPayload struct {
	FeelingID  int64  `json:"feelingId"`
	Text       string `json:"text"`
	Author     string `json:"author"`
	AuthorRole Role   `json:"authorRole"`
}

// LikeUpdatedPayload - server->client likeUpdated
type LikeUpdatedPayload struct {
	FeelingID  int64  `json:"feelingId"`
	WasLiked   bool   `json:"wasLiked"`
	LikesCount int    `json:"likesCount"`
	UserID     string `json:"userId"`
	UserRole   Role   `json:"userRole"`
}

// CommentAddedPayload - server->client commentAdded
type CommentAddedPayload struct {
	FeelingID int64   `json:"feelingId"`
	Comment   Comment `json:"comment"`
}

// ErrorPayload - server->client error, delivered to the originator only
type ErrorPayload struct {
	Message string `json:"message"`
}
