package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feelings/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, server *httptest.Server, identity string, role models.Role) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/feed"
	header := http.Header{}
	if identity != "" {
		header.Set("X-Identity", identity)
		header.Set("X-Role", string(role))
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Every session gets a hello frame first.
	hello := readEnvelope(t, conn, 2*time.Second)
	require.Equal(t, models.EventConnected, hello.Event)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) models.WSEnvelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope models.WSEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope
}

func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", raw)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()

	frame, err := models.NewWSEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func setupWSServer(t *testing.T) (*gin.Engine, *httptest.Server) {
	t.Helper()
	r := setupRouter(t)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return r, server
}

func TestReceiveFeelingSkipsOriginator(t *testing.T) {
	_, server := setupWSServer(t)

	origin := dialWS(t, server, "ann", models.PARENT)
	other := dialWS(t, server, "ben", models.CHILD)

	sendEvent(t, origin, models.EventNewFeeling, models.NewFeelingPayload{
		Text:        "long day",
		Author:      "ann",
		AuthorRole:  models.PARENT,
		ClientToken: "tok-ws-1",
	})

	envelope := readEnvelope(t, other, 2*time.Second)
	assert.Equal(t, models.EventReceiveFeeling, envelope.Event)

	var feeling models.FeedFeeling
	require.NoError(t, json.Unmarshal(envelope.Payload, &feeling))
	assert.Equal(t, "long day", feeling.Text)
	assert.Equal(t, "tok-ws-1", feeling.ClientToken)

	expectSilence(t, origin, 300*time.Millisecond)
}

func TestLikeUpdatedReachesEverySession(t *testing.T) {
	r, server := setupWSServer(t)
	feeling := createFeeling(t, r, "ann", models.PARENT, "long day")

	origin := dialWS(t, server, "ben", models.CHILD)
	other := dialWS(t, server, "ann", models.PARENT)

	sendEvent(t, origin, models.EventToggleLike, models.ToggleLikePayload{
		FeelingID: feeling.ID,
		UserID:    "ben",
		UserRole:  models.CHILD,
	})

	for _, conn := range []*websocket.Conn{origin, other} {
		envelope := readEnvelope(t, conn, 2*time.Second)
		require.Equal(t, models.EventLikeUpdated, envelope.Event)

		var update models.LikeUpdatedPayload
		require.NoError(t, json.Unmarshal(envelope.Payload, &update))
		assert.Equal(t, feeling.ID, update.FeelingID)
		assert.True(t, update.WasLiked)
		assert.Equal(t, 1, update.LikesCount)
		assert.Equal(t, "ben", update.UserID)
	}
}

func TestCommentAddedReachesEverySession(t *testing.T) {
	r, server := setupWSServer(t)
	feeling := createFeeling(t, r, "ann", models.PARENT, "long day")

	origin := dialWS(t, server, "ben", models.CHILD)
	other := dialWS(t, server, "ann", models.PARENT)

	sendEvent(t, origin, models.EventNewComment, models.NewCommentPayload{
		FeelingID:  feeling.ID,
		Text:       "hang in there",
		Author:     "ben",
		AuthorRole: models.CHILD,
	})

	for _, conn := range []*websocket.Conn{origin, other} {
		envelope := readEnvelope(t, conn, 2*time.Second)
		require.Equal(t, models.EventCommentAdded, envelope.Event)

		var added models.CommentAddedPayload
		require.NoError(t, json.Unmarshal(envelope.Payload, &added))
		assert.Equal(t, feeling.ID, added.FeelingID)
		assert.Equal(t, "hang in there", added.Comment.Text)
	}
}

// A rejected mutation goes back to the offending session only; nobody else
// hears about it.
func TestSelfLikeErrorGoesToOriginatorOnly(t *testing.T) {
	r, server := setupWSServer(t)
	feeling := createFeeling(t, r, "ann", models.PARENT, "long day")

	origin := dialWS(t, server, "ann", models.PARENT)
	other := dialWS(t, server, "ben", models.CHILD)

	sendEvent(t, origin, models.EventToggleLike, models.ToggleLikePayload{
		FeelingID: feeling.ID,
		UserID:    "ann",
		UserRole:  models.PARENT,
	})

	envelope := readEnvelope(t, origin, 2*time.Second)
	require.Equal(t, models.EventError, envelope.Event)

	var errPayload models.ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Payload, &errPayload))
	assert.Contains(t, errPayload.Message, "own")

	expectSilence(t, other, 300*time.Millisecond)
}

func TestMalformedFrameGetsErrorEvent(t *testing.T) {
	_, server := setupWSServer(t)

	conn := dialWS(t, server, "ann", models.PARENT)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	envelope := readEnvelope(t, conn, 2*time.Second)
	assert.Equal(t, models.EventError, envelope.Event)

	sendEvent(t, conn, "munch", struct{}{})
	envelope = readEnvelope(t, conn, 2*time.Second)
	assert.Equal(t, models.EventError, envelope.Event)
}

// A mutation arriving over REST still reaches websocket sessions.
func TestRESTMutationBroadcastsToSockets(t *testing.T) {
	r, server := setupWSServer(t)
	feeling := createFeeling(t, r, "ann", models.PARENT, "long day")

	conn := dialWS(t, server, "kim", models.CHILD)

	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/feelings/"+itoa(feeling.ID)+"/like", "ben", models.CHILD, nil)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := readEnvelope(t, conn, 2*time.Second)
	require.Equal(t, models.EventLikeUpdated, envelope.Event)

	var update models.LikeUpdatedPayload
	require.NoError(t, json.Unmarshal(envelope.Payload, &update))
	assert.Equal(t, 1, update.LikesCount)
}
