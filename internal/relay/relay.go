package relay

import (
	"context"
	"log"

	"github.com/mfdeleon/go-privchat/internal/stats"
	"github.com/mfdeleon/go-privchat/internal/types"
)

type joinReq struct {
	client *Client
	room   string
}

type broadcastReq struct {
	room string
	msg  *types.Message
}

type stopReq struct {
	done chan struct{}
}

// RelayServer owns the live connections, the presence registry and the
// room membership table. Rooms are values computed on demand from a
// pair of user ids (RoomName); membership lives exactly as long as the
// member connections.
type RelayServer struct {
	log      *log.Logger
	presence *Presence
	store    MessageStore
	stats    stats.StatsProvider

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan joinReq
	broadcastChan  chan broadcastReq
	stop           chan stopReq
}

func NewRelayServer(logger *log.Logger, presence *Presence, store MessageStore, su stats.StatsProvider) (*RelayServer, error) {
	for _, metric := range []string{
		stats.MetricConnections,
		stats.MetricOnlineUsers,
		stats.MetricActiveRooms,
		stats.MetricMessagesRelayed,
		stats.MetricMessagesDropped,
	} {
		su.RegisterMetric(metric)
	}

	return &RelayServer{
		log:            logger,
		presence:       presence,
		store:          store,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client, 16),
		deregisterChan: make(chan *Client, 16),
		joinChan:       make(chan joinReq, 256),
		broadcastChan:  make(chan broadcastReq, 256),
		stop:           make(chan stopReq),
	}, nil
}

func (rs *RelayServer) Run() {
	for {
		select {
		case c := <-rs.registerChan:
			rs.addClient(c)
		case c := <-rs.deregisterChan:
			rs.removeClient(c)
		case req := <-rs.joinChan:
			rs.handleJoin(req)
		case req := <-rs.broadcastChan:
			rs.handleBroadcast(req)
		case req := <-rs.stop:
			rs.log.Println("relay server stopping")
			for c := range rs.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

func (rs *RelayServer) addClient(c *Client) {
	rs.log.Printf("new connection %s", c.connId)
	rs.clients[c] = struct{}{}
	rs.stats.Incr(stats.MetricConnections)
}

func (rs *RelayServer) removeClient(c *Client) {
	if _, ok := rs.clients[c]; !ok {
		return
	}

	rs.log.Printf("removing connection %s", c.connId)
	delete(rs.clients, c)
	rs.stats.Decr(stats.MetricConnections)

	// Only the connection that still owns its presence entry removes
	// it; a connection displaced by a reconnect must not evict the
	// newer one.
	if rs.presence.Unregister(c.connId) {
		rs.stats.Decr(stats.MetricOnlineUsers)
	}

	for room, members := range rs.rooms {
		if _, ok := members[c]; !ok {
			continue
		}

		delete(members, c)
		if len(members) == 0 {
			delete(rs.rooms, room)
			rs.stats.Decr(stats.MetricActiveRooms)
		}
	}

	c.stopClient()
}

func (rs *RelayServer) handleJoin(req joinReq) {
	members, ok := rs.rooms[req.room]
	if !ok {
		members = make(map[*Client]struct{})
		rs.rooms[req.room] = members
		rs.stats.Incr(stats.MetricActiveRooms)
	}

	if _, ok := members[req.client]; ok {
		// join is idempotent
		return
	}

	members[req.client] = struct{}{}
	rs.log.Printf("connection %s joined room %q", req.client.connId, req.room)
}

func (rs *RelayServer) handleBroadcast(req broadcastReq) {
	members := rs.rooms[req.room]
	if len(members) == 0 {
		rs.log.Printf("no connections in room %q, dropping broadcast", req.room)
		return
	}

	ev := newMessageEvent(req.msg)
	for c := range members {
		c.queueEvent(ev)
	}

	rs.stats.Incr(stats.MetricMessagesRelayed)
}

// RegisterClient hands a freshly upgraded connection to the run loop.
func (rs *RelayServer) RegisterClient(c *Client) {
	rs.registerChan <- c
}

func (rs *RelayServer) join(c *Client, room string) {
	select {
	case rs.joinChan <- joinReq{client: c, room: room}:
	default:
		rs.log.Printf("join channel full, dropping join for room %q", room)
	}
}

// Broadcast queues msg for delivery to every connection in room,
// including the sender's own.
func (rs *RelayServer) Broadcast(room string, msg *types.Message) {
	select {
	case rs.broadcastChan <- broadcastReq{room: room, msg: msg}:
	default:
		rs.log.Printf("broadcast channel full, dropping message for room %q", room)
		rs.stats.Incr(stats.MetricMessagesDropped)
	}
}

func (rs *RelayServer) deregister(c *Client) {
	select {
	case rs.deregisterChan <- c:
	default:
		rs.log.Printf("deregister channel full, dropping deregister for %s", c.connId)
	}
}

func (rs *RelayServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case rs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
