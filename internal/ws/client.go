package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/optik-pos/api/internal/auth"
	"github.com/optik-pos/api/internal/enum"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be shorter than pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth is by token, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	errMissingToken = errors.New("missing token")
	errBadToken     = errors.New("invalid token")
	errBadShop      = errors.New("invalid shop id")
	errShopDenied   = errors.New("shop access denied")
)

// Client is one subscribed screen. The hub owns send: it is closed by the
// hub when the client is dropped.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	shopID uuid.UUID
	send   chan []byte
}

// readLoop only watches for the peer going away; screens never send.
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("shop_id", c.shopID.String()).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}

// writeLoop sends each event as its own text frame and keeps the
// connection alive with pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// authorize resolves the shop a websocket request may subscribe to. The
// token comes from the query string, or from a bearer header for non-browser
// clients.
func authorize(r *http.Request, jwtSecret string) (uuid.UUID, int, error) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		return uuid.Nil, http.StatusUnauthorized, errMissingToken
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		return uuid.Nil, http.StatusUnauthorized, errBadToken
	}

	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		return uuid.Nil, http.StatusBadRequest, errBadShop
	}

	// OWNER can watch any shop; everyone else only their own
	if claims.Role != enum.UserRoleOwner && claims.ShopID != shopID {
		return uuid.Nil, http.StatusForbidden, errShopDenied
	}
	return shopID, http.StatusOK, nil
}

// ServeWS upgrades a request on /ws/shops/{sid}/orders?token=JWT and
// subscribes the connection to that shop's order events.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	shopID, status, err := authorize(r, jwtSecret)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error().Err(err).Msg("websocket upgrade")
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		shopID: shopID,
		send:   make(chan []byte, sendBuffer),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop()
}
