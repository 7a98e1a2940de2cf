package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"feelings/api/middleware"
	"feelings/models"
	"feelings/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSFeedHandler is the channel entry point of the gateway. Each inbound
// event runs through the same FeedService pipeline as the REST surface;
// rejections go back to this session only, as an error event.
func WSFeedHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	session := services.GlobalSessionHub.Add(conn)
	middleware.WSSessionOpened()
	defer func() {
		services.GlobalSessionHub.Remove(session)
		middleware.WSSessionClosed()
		conn.Close()
	}()

	if identity, ok := c.Get("identity"); ok {
		role, _ := c.Get("role")
		if userRole, ok := role.(models.Role); ok {
			services.GlobalSessionHub.Attribute(session, identity.(string), userRole)
		}
	}

	hello, _ := models.NewWSEnvelope(models.EventConnected, models.ErrorPayload{Message: "WebSocket connected"})
	services.GlobalSessionHub.Send(session, hello)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("WebSocket read error:", err)
			}
			return
		}

		var envelope models.WSEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			sendError(session, "invalid message format")
			continue
		}

		dispatchEvent(c, session, envelope)
	}
}

func dispatchEvent(c *gin.Context, session *services.Session, envelope models.WSEnvelope) {
	ctx := c.Request.Context()
	start := time.Now()

	switch envelope.Event {
	case models.EventNewFeeling:
		var payload models.NewFeelingPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			sendError(session, "invalid newFeeling payload")
			return
		}
		services.GlobalSessionHub.Attribute(session, payload.Author, payload.AuthorRole)
		_, err := feedService.CreateFeeling(ctx, payload, session)
		middleware.RecordFeedMutation("create", "ws", mutationStatus(err), time.Since(start))
		if err != nil {
			sendError(session, err.Error())
		}

	case models.EventToggleLike:
		var payload models.ToggleLikePayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			sendError(session, "invalid toggleLike payload")
			return
		}
		services.GlobalSessionHub.Attribute(session, payload.UserID, payload.UserRole)
		_, _, err := feedService.ToggleLike(ctx, payload, session)
		middleware.RecordFeedMutation("toggle_like", "ws", mutationStatus(err), time.Since(start))
		if err != nil {
			sendError(session, err.Error())
		}

	case models.EventNewComment:
		var payload models.NewCommentPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			sendError(session, "invalid newComment payload")
			return
		}
		services.GlobalSessionHub.Attribute(session, payload.Author, payload.AuthorRole)
		_, _, err := feedService.AddComment(ctx, payload, session)
		middleware.RecordFeedMutation("comment", "ws", mutationStatus(err), time.Since(start))
		if err != nil {
			sendError(session, err.Error())
		}

	default:
		sendError(session, "unknown event: "+envelope.Event)
	}
}

func sendError(session *services.Session, message string) {
	frame, err := models.NewWSEnvelope(models.EventError, models.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	services.GlobalSessionHub.Send(session, frame)
}
