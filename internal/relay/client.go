package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mfdeleon/go-privchat/internal/stats"
	"github.com/mfdeleon/go-privchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// Client is a single websocket connection. Events arriving on the
// connection are handled one at a time in arrival order; outbound
// events go through the send queue and the write pump.
type Client struct {
	connId string
	conn   *websocket.Conn
	rs     *RelayServer
	log    *log.Logger

	send     chan *ServerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, rs *RelayServer, logger *log.Logger) *Client {
	return &Client{
		connId: uuid.NewString(),
		conn:   conn,
		rs:     rs,
		log:    logger,
		send:   make(chan *ServerEvent, sendQueueSize),
		stop:   make(chan struct{}),
	}
}

func (c *Client) ConnId() string {
	return c.connId
}

// Serve runs the read and write pumps and blocks until the connection
// is gone.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.rs.deregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Printf("connection %s read error: %s", c.connId, err)
			}
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Printf("connection %s sent malformed event: %s", c.connId, err)
			continue
		}

		c.handleEvent(&ev)
	}
}

func (c *Client) handleEvent(ev *ClientEvent) {
	switch {
	case ev.Connected != nil:
		c.handleConnected(ev.Connected)
	case ev.Join != nil:
		c.handleJoin(ev.Join)
	case ev.Message != nil:
		c.handleMessage(ev.Message)
	case ev.FileMessage != nil:
		c.handleFileMessage(ev.FileMessage)
	default:
		c.log.Printf("connection %s sent unknown event", c.connId)
	}
}

func (c *Client) handleConnected(ev *UserConnected) {
	if ev.UserId == 0 {
		c.log.Printf("connection %s announced without a user id", c.connId)
		return
	}

	if c.rs.presence.Register(ev.UserId, c.connId) {
		c.rs.stats.Incr(stats.MetricOnlineUsers)
	}
	c.log.Printf("user %d online on connection %s", ev.UserId, c.connId)
}

func (c *Client) handleJoin(ev *JoinPrivateRoom) {
	if ev.UserId1 == 0 || ev.UserId2 == 0 {
		c.log.Printf("connection %s sent join with missing user ids", c.connId)
		return
	}

	c.rs.join(c, RoomName(ev.UserId1, ev.UserId2))
}

func (c *Client) handleMessage(ev *PrivateMessage) {
	if ev.SenderId == 0 || ev.ReceiverId == 0 {
		c.log.Printf("connection %s sent message with missing sender or receiver, dropping", c.connId)
		c.rs.stats.Incr(stats.MetricMessagesDropped)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
	defer cancel()

	msg, err := c.rs.store.SaveMessage(ctx, SaveMessageParams{
		Content:     ev.Content,
		SenderId:    ev.SenderId,
		ReceiverId:  ev.ReceiverId,
		MessageType: types.MessageTypeText,
	})
	if err != nil {
		c.log.Printf("failed to save message from %d to %d, dropping: %s", ev.SenderId, ev.ReceiverId, err)
		c.rs.stats.Incr(stats.MetricMessagesDropped)
		return
	}

	c.rs.Broadcast(RoomName(ev.SenderId, ev.ReceiverId), &msg)
}

func (c *Client) handleFileMessage(msg *types.Message) {
	if msg.SenderId == 0 || msg.ReceiverId == 0 {
		c.log.Printf("connection %s sent file message with missing sender or receiver, dropping", c.connId)
		c.rs.stats.Incr(stats.MetricMessagesDropped)
		return
	}

	c.rs.Broadcast(RoomName(msg.SenderId, msg.ReceiverId), msg)
}

func (c *Client) queueEvent(ev *ServerEvent) {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("send queue full for connection %s, dropping event", c.connId)
		c.rs.stats.Incr(stats.MetricMessagesDropped)
	}
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Printf("connection %s write error: %s", c.connId, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
