// SPDX-License-Identifier: MIT
package transport

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "pulseviz/internal/log"
)

// WebSocketTransport broadcasts frames as JSON to every connected
// renderer. Slow consumers never stall the tick loop: frames are queued
// on a buffered channel and dropped when it is full.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan *Frame
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
	listener  net.Listener
}

// NewWebSocketTransport starts an HTTP server on addr with a /ws
// upgrade endpoint and begins broadcasting.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers connect from arbitrary origins.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan *Frame, 256),
		done:      make(chan struct{}),
	}

	wst.start()
	return wst
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		applog.Errorf("WebSocketTransport: Listen on %s failed: %v", wst.addr, err)
	} else {
		wst.listener = ln
		go func() {
			applog.Infof("WebSocketTransport: Listening on %s", ln.Addr())
			if err := wst.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				applog.Errorf("WebSocketTransport: Server error: %v", err)
			}
		}()
	}

	go wst.handleBroadcasts()
}

// Addr returns the bound listen address, useful when the configured
// address requested an ephemeral port. Empty if the listener failed.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener == nil {
		return ""
	}
	return wst.listener.Addr().String()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	go func() {
		// Block until the client closes or errors.
		_, _, err := conn.ReadMessage()
		if err != nil {
			wst.clientsMu.Lock()
			delete(wst.clients, conn)
			total := len(wst.clients)
			wst.clientsMu.Unlock()
			conn.Close()
			applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
		}
	}()
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case frame := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				if err := client.WriteJSON(frame); err != nil {
					applog.Debugf("WebSocketTransport: Dropping client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Send queues a frame for broadcast. Never blocks; when the queue is
// full the frame is dropped.
func (wst *WebSocketTransport) Send(frame *Frame) error {
	select {
	case wst.broadcast <- frame:
	default:
	}
	return nil
}

// Close stops the broadcaster, disconnects all clients and shuts down
// the server. Safe to call more than once; Send after Close still
// returns without blocking.
func (wst *WebSocketTransport) Close() error {
	applog.Infof("WebSocketTransport: Closing server")

	wst.closeOnce.Do(func() { close(wst.done) })

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	if wst.server != nil {
		return wst.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
