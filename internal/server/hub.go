package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/socketchat/relay/internal/chat"
)

// Hub owns the set of live connections and turns symbolic envelope targets
// into actual writes on client send buffers. Envelope batches are consumed
// by a single loop, so events for any one connection preserve the order the
// core produced them in. State mutation always happens before a batch
// reaches the hub; the hub itself never blocks on a slow client (full send
// buffers get the connection dropped instead).
type Hub struct {
	log   *zap.SugaredLogger
	state *chat.State

	clients    map[string]*Client
	mutex      sync.RWMutex
	register   chan *Client
	unregister chan *Client
	dispatch   chan []chat.Envelope

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub returns a hub resolving room targets against state. Run must be
// started in its own goroutine before clients are registered.
func NewHub(state *chat.State, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		state:      state,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan []chat.Envelope, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a freshly upgraded connection to the hub loop, which
// starts its pumps and sends the connect greeting.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a connection from the hub and closes its send buffer.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Dispatch queues an envelope batch for delivery.
func (h *Hub) Dispatch(envelopes []chat.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	select {
	case h.dispatch <- envelopes:
	case <-h.ctx.Done():
	}
}

// Run is the hub's event loop. It should be called once, in a dedicated
// goroutine; it returns when Shutdown is invoked.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case envelopes := <-h.dispatch:
			h.deliver(envelopes)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	total := len(h.clients)
	h.mutex.Unlock()
	h.log.Infow("client connected", "conn_id", client.id, "addr", client.addr, "total", total)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	// Every connection is greeted with the current room list, before any
	// join.
	h.deliver([]chat.Envelope{{
		Target:  chat.ToConn(client.id),
		Event:   chat.EventRoomsList,
		Payload: h.state.RoomCounts(),
	}})
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	total := len(h.clients)
	h.mutex.Unlock()

	// Close outside the lock; the write pump exits on the closed channel.
	close(client.send)
	h.log.Infow("client disconnected", "conn_id", client.id, "addr", client.addr, "total", total)
}

func (h *Hub) deliver(envelopes []chat.Envelope) {
	for _, env := range envelopes {
		payload, err := encodeFrame(env.Event, env.Payload)
		if err != nil {
			h.log.Errorw("dropping undeliverable event", "event", env.Event, "error", err)
			continue
		}

		var failed []*Client
		for _, client := range h.audience(env.Target) {
			if !h.safeSend(client, payload) {
				failed = append(failed, client)
			}
		}
		h.dropFailed(failed)
	}
}

// audience resolves a symbolic target to the clients that should receive
// the event. Room scopes consult live membership, so a connection that
// left between production and delivery simply falls out of the audience.
func (h *Hub) audience(target chat.Target) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	switch target.Scope {
	case chat.ScopeConn:
		if client, ok := h.clients[target.Conn]; ok {
			return []*Client{client}
		}
		return nil

	case chat.ScopeRoom:
		members := h.state.Members(target.Room)
		audience := make([]*Client, 0, len(members))
		for _, member := range members {
			if member.ConnID == target.Exclude {
				continue
			}
			if client, ok := h.clients[member.ConnID]; ok {
				audience = append(audience, client)
			}
		}
		return audience

	case chat.ScopeAll:
		audience := make([]*Client, 0, len(h.clients))
		for id, client := range h.clients {
			if id == target.Exclude {
				continue
			}
			audience = append(audience, client)
		}
		return audience
	}
	return nil
}

// safeSend enqueues payload on the client's send buffer without blocking.
// It returns false when the client is gone or its buffer is full.
func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warnw("recovered from send on closed client", "conn_id", client.id, "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[client.id]; !ok || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) dropFailed(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channels []chan []byte
	for _, client := range failed {
		if _, ok := h.clients[client.id]; ok {
			delete(h.clients, client.id)
			client.closed = true
			channels = append(channels, client.send)
			h.log.Warnw("dropping client with full send buffer", "conn_id", client.id, "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

// shutdownClients tears every connection down: the closed send buffers
// wake the write pumps, the closed sockets wake the read pumps.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		client.closed = true
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warnw("error closing client connection", "conn_id", client.id, "error", err)
		}
	}
	h.log.Infow("closed client connections", "count", len(clients))
}

// Shutdown stops the hub loop, closes every connection, and waits for the
// pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out; some client goroutines may still be running")
		return context.DeadlineExceeded
	}
}
