package signaling

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/models"
)

const (
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second
	writeWait     = 10 * time.Second
	readLimit     = 65536
	sendBufferLen = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy enforced by the CORS middleware upstream
	},
}

// SessionSource resolves a session id to its snapshot.
type SessionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// UserSource resolves a user id to its record.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenConsumer redeems a single-use session token.
type TokenConsumer interface {
	Consume(ctx context.Context, token string) (sessionID, userID uuid.UUID, err error)
}

// Client is one websocket transport connection bound to a peer. The peer id
// is the authenticated user id, so moderator control pushes can target a
// participant without a separate lookup.
type Client struct {
	transportID string
	peerID      string
	roomID      string
	meta        PeerMeta
	router      *Router
	conn        *websocket.Conn
	send        chan Signal
	logger      *zap.Logger
}

// Send queues a signal without blocking. Returns false when the buffer is
// full and the signal was dropped.
func (c *Client) Send(sig Signal) bool {
	select {
	case c.send <- sig:
		return true
	default:
		return false
	}
}

// ServeWs handles the websocket upgrade and runs the client loop. The caller
// presents a single-use token obtained from a successful join; the bound
// session determines the room.
func ServeWs(router *Router, sessions SessionSource, users UserSource, tokens TokenConsumer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		ctx := c.Request.Context()
		sessionID, userID, err := tokens.Consume(ctx, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		session, err := sessions.Get(ctx, sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if session.Status != models.StatusScheduled && session.Status != models.StatusLive {
			c.JSON(http.StatusConflict, gin.H{"error": "session has ended or been cancelled"})
			return
		}
		userName := ""
		if user, err := users.GetByID(ctx, userID); err == nil {
			userName = user.FullName
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			transportID: uuid.New().String(),
			peerID:      userID.String(),
			roomID:      session.RoomID,
			meta: PeerMeta{
				UserID:    userID.String(),
				UserName:  userName,
				IsCreator: session.CreatorID == userID,
			},
			router: router,
			conn:   conn,
			send:   make(chan Signal, sendBufferLen),
			logger: logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.router.HandleDisconnect(c.transportID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var sig Signal
		if err := c.conn.ReadJSON(&sig); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Sender identity is always taken from the authenticated
		// connection, never from the payload.
		sig.RoomID = c.roomID
		sig.PeerID = c.peerID
		sig.UserID = c.meta.UserID

		switch sig.Type {
		case TypeJoin:
			c.router.HandleJoin(c.roomID, c.peerID, c.meta, c.transportID, c)
		case TypeLeave:
			c.router.HandleLeave(c.roomID, c.peerID)
		case TypeOffer, TypeAnswer, TypeICECandidate,
			TypeMediaStateChange, TypeStartScreenShare, TypeStopScreenShare:
			c.router.Relay(sig)
		default:
			c.logger.Debug("ignoring signal", zap.String("type", sig.Type))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case sig, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(sig); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
