package feedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"feelings/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client-side error classes.
var (
	// ErrTransport - a send failed or timed out on both paths
	ErrTransport = errors.New("transport failure")
	// ErrSelfAction - acting on one's own feeling, rejected before any
	// network call (the server enforces it again)
	ErrSelfAction = errors.New("cannot act on own feeling")
	// ErrUnknownFeeling - the feeling is not in the local view
	ErrUnknownFeeling = errors.New("unknown feeling")
)

const (
	requestTimeout   = 10 * time.Second
	reconnectDelay   = time.Second
	postDiscardGrace = 5 * time.Second
)

// Client keeps an optimistic local copy of the feed in sync with the
// server: it seeds the view from a full fetch, applies local actions
// immediately, sends them out, and merges broadcasts and confirmations back
// in through the FeedView reducer. The broadcast pump runs independently of
// in-flight requests.
type Client struct {
	baseURL  string
	identity string
	role     models.Role

	httpc *http.Client
	view  *FeedView

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	notices chan string
}

func New(baseURL, identity string, role models.Role) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		role:     role,
		httpc:    &http.Client{Timeout: requestTimeout},
		view:     NewFeedView(identity, role),
		notices:  make(chan string, 16),
	}
}

// Connect seeds the view with a full fetch, dials the websocket and starts
// the broadcast pump.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := c.dial(); err != nil {
		return err
	}
	go c.readPump()
	return nil
}

func (c *Client) dial() error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/ws/feed"
	header := http.Header{}
	header.Set("X-Identity", c.identity)
	header.Set("X-Role", string(c.role))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Refresh refetches the whole feed and replaces the local view. Used on
// connect and after every reconnect: optimistic state from before a
// disconnect is not trusted.
func (c *Client) Refresh(ctx context.Context) error {
	var feed []models.FeedFeeling
	if err := c.get(ctx, "/api/v1/feelings", &feed); err != nil {
		return err
	}
	c.view.Reload(feed)
	return nil
}

// Feelings returns the current local view.
func (c *Client) Feelings() []models.FeedFeeling {
	return c.view.Feelings()
}

// View exposes the reducer, mostly for tests.
func (c *Client) View() *FeedView {
	return c.view
}

// Notices delivers non-fatal user-visible messages (rolled-back actions,
// reconnects).
func (c *Client) Notices() <-chan string {
	return c.notices
}

// PostFeeling applies a provisional entry, then sends the mutation on the
// channel and request/response paths concurrently. The server deduplicates
// by correlation token, so the double send is safe.
func (c *Client) PostFeeling(ctx context.Context, text string) error {
	token := uuid.NewString()
	c.view.ApplyLocalPost(token, text)

	go c.emit(models.EventNewFeeling, models.NewFeelingPayload{
		Text:        text,
		Author:      c.identity,
		AuthorRole:  c.role,
		ClientToken: token,
	})

	var confirmed models.FeedFeeling
	err := c.post(ctx, "/api/v1/feelings", map[string]string{
		"text":        text,
		"clientToken": token,
	}, &confirmed)
	if err != nil {
		// The channel path may still confirm it; discard only if nothing
		// claimed the provisional entry within the grace period.
		go func() {
			time.Sleep(postDiscardGrace)
			if c.view.DiscardPost(token) {
				c.notice("your post could not be delivered")
			}
		}()
		return err
	}

	c.view.ConfirmPost(token, confirmed)
	return nil
}

// ToggleLike flips the like optimistically and sends the mutation, using
// the channel path as the redundant retry when the request/response path
// fails at the transport level. On a server rejection or confirmed failure
// the optimistic flip is inverted.
func (c *Client) ToggleLike(ctx context.Context, feelingID int64) error {
	feeling, ok := c.view.Get(feelingID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFeeling, feelingID)
	}
	if feeling.Author == c.identity {
		return ErrSelfAction
	}

	c.view.ApplyLocalToggle(feelingID)

	var confirmed models.LikeUpdatedPayload
	err := c.post(ctx, fmt.Sprintf("/api/v1/feelings/%d/like", feelingID), map[string]string{}, &confirmed)
	if err == nil {
		confirmed.UserID = c.identity
		confirmed.UserRole = c.role
		c.view.MergeLikeUpdate(confirmed)
		return nil
	}

	// A server rejection would be rejected on the socket path too; only a
	// transport failure earns the redundant retry.
	if !errors.Is(err, ErrTransport) {
		c.view.RollbackToggle(feelingID)
		return err
	}

	if emitErr := c.emit(models.EventToggleLike, models.ToggleLikePayload{
		FeelingID: feelingID,
		UserID:    c.identity,
		UserRole:  c.role,
	}); emitErr == nil {
		// The likeUpdated broadcast will reconcile the counters.
		return nil
	}

	c.view.RollbackToggle(feelingID)
	c.notice("your like could not be delivered")
	return err
}

// AddComment appends the comment optimistically and sends the mutation,
// with the channel path as the redundant retry on transport failure. On a
// server rejection or confirmed failure the optimistic comment is removed.
func (c *Client) AddComment(ctx context.Context, feelingID int64, text string) error {
	feeling, ok := c.view.Get(feelingID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFeeling, feelingID)
	}
	if feeling.Author == c.identity {
		return ErrSelfAction
	}

	c.view.ApplyLocalComment(feelingID, text)

	var confirmed struct {
		FeelingID int64          `json:"feelingId"`
		Comment   models.Comment `json:"comment"`
	}
	err := c.post(ctx, fmt.Sprintf("/api/v1/feelings/%d/comment", feelingID), map[string]string{
		"text": text,
	}, &confirmed)
	if err == nil {
		c.view.MergeCommentAdded(models.CommentAddedPayload{
			FeelingID: confirmed.FeelingID,
			Comment:   confirmed.Comment,
		})
		return nil
	}

	if !errors.Is(err, ErrTransport) {
		c.view.RollbackComment(feelingID, text)
		return err
	}

	if emitErr := c.emit(models.EventNewComment, models.NewCommentPayload{
		FeelingID:  feelingID,
		Text:       text,
		Author:     c.identity,
		AuthorRole: c.role,
	}); emitErr == nil {
		return nil
	}

	c.view.RollbackComment(feelingID, text)
	c.notice("your comment could not be delivered")
	return err
}

// Close stops the pump and drops the connection.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// readPump processes broadcasts as they arrive, independent of any local
// call in flight - including the broadcast for one's own action arriving
// before the request/response call returns. A transport failure never stops
// it; it reconnects and resynchronizes with a full refetch.
func (c *Client) readPump() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.reconnect() {
				continue
			}
			return
		}

		var envelope models.WSEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		c.handleBroadcast(envelope)
	}
}

func (c *Client) handleBroadcast(envelope models.WSEnvelope) {
	switch envelope.Event {
	case models.EventReceiveFeeling:
		var feeling models.FeedFeeling
		if err := json.Unmarshal(envelope.Payload, &feeling); err == nil {
			c.view.MergeBroadcastFeeling(feeling)
		}
	case models.EventLikeUpdated:
		var update models.LikeUpdatedPayload
		if err := json.Unmarshal(envelope.Payload, &update); err == nil {
			c.view.MergeLikeUpdate(update)
		}
	case models.EventCommentAdded:
		var added models.CommentAddedPayload
		if err := json.Unmarshal(envelope.Payload, &added); err == nil {
			c.view.MergeCommentAdded(added)
		}
	case models.EventError:
		var payload models.ErrorPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err == nil {
			c.notice(payload.Message)
		}
	}
}

// reconnect redials until it succeeds or the client is closed, then
// replaces the local view with a fresh fetch.
func (c *Client) reconnect() bool {
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return false
		}

		time.Sleep(reconnectDelay)
		if err := c.dial(); err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err := c.Refresh(ctx)
		cancel()
		if err != nil {
			c.notice("reconnected but feed refresh failed")
		} else {
			c.notice("reconnected")
		}
		return true
	}
}

func (c *Client) emit(event string, payload interface{}) error {
	frame, err := models.NewWSEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", ErrTransport)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (c *Client) notice(message string) {
	select {
	case c.notices <- message:
	default:
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("X-Identity", c.identity)
	req.Header.Set("X-Role", string(c.role))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: bad response: %v", ErrTransport, err)
	}
	if !envelope.Success {
		return fmt.Errorf("server rejected request: %s", envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: bad response data: %v", ErrTransport, err)
		}
	}
	return nil
}
