// Package server keeps the websocket connections of signed-in users and pushes
// room events to them. Writes go through the HTTP API; the socket only
// carries notifications.
package server

import (
	"context"
	"sync"

	"github.com/sihhaapp/sihha/internal/stats"
	"go.uber.org/zap"
)

type stopReq struct {
	done chan struct{}
}

type ChatServer struct {
	log            *zap.Logger
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	userMap        map[string]map[*Client]struct{}
	clientsLock    sync.RWMutex
	registerChan   chan *Client
	deRegisterChan chan *Client
	broadcastChan  chan *ServerMessage
	stop           chan stopReq
	exited         chan struct{}
}

func NewChatServer(logger *zap.Logger, su stats.StatsProvider) *ChatServer {
	return &ChatServer{
		log:            logger,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client, 64),
		deRegisterChan: make(chan *Client, 64),
		broadcastChan:  make(chan *ServerMessage, 256),
		stop:           make(chan stopReq),
		exited:         make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	defer close(cs.exited)

	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
			cs.log.Debug("client connected", zap.String("user_id", c.user.Id))
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
			cs.log.Debug("client disconnected", zap.String("user_id", c.user.Id))
		case msg := <-cs.broadcastChan:
			cs.handleBroadcast(msg)
		case req := <-cs.stop:
			cs.clientsLock.RLock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.RUnlock()

			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

func (cs *ChatServer) deRegisterClient(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.exited:
	}
}

// Push queues msg for every connection of userIds. It never blocks the
// caller; when the queue is full the notification is dropped.
func (cs *ChatServer) Push(msg *ServerMessage, userIds ...string) {
	if cs == nil {
		return
	}

	for _, id := range userIds {
		m := *msg
		m.UserId = id
		select {
		case cs.broadcastChan <- &m:
		default:
			cs.log.Warn("broadcast queue full, dropping notification", zap.String("user_id", id))
		}
	}
}

func (cs *ChatServer) handleBroadcast(msg *ServerMessage) {
	for _, c := range cs.getClients(msg.UserId) {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	if _, ok := cs.userMap[c.user.Id]; !ok {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}
	cs.stats.Incr(stats.WsConnections)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	delete(cs.userMap[c.user.Id], c)
	if len(cs.userMap[c.user.Id]) == 0 {
		delete(cs.userMap, c.user.Id)
	}
	cs.stats.Decr(stats.WsConnections)
}

func (cs *ChatServer) getClients(userId string) []*Client {
	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()

	clients := make([]*Client, 0, len(cs.userMap[userId]))
	for c := range cs.userMap[userId] {
		clients = append(clients, c)
	}

	return clients
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info("shutting down push hub")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
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
