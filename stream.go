package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"

	"github.com/RoiRomem/KoiUtils/dashboard"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster fans the dashboard change stream out to every connected
// websocket client and accepts override edits back on the same socket.
// The websocket library allows a single concurrent writer per connection,
// so each connection gets its own writer goroutine fed through a channel;
// broadcasts and the snapshot replay both enqueue instead of writing the
// connection directly.
type Broadcaster struct {
	table  *dashboard.Table
	logger golog.Logger

	lock  sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

func NewBroadcaster(table *dashboard.Table, logger golog.Logger) *Broadcaster {
	return &Broadcaster{
		table:  table,
		logger: logger,
		conns:  make(map[*websocket.Conn]chan []byte),
	}
}

// Run consumes the table's update stream. Call once, in a goroutine.
func (b *Broadcaster) Run() {
	for entry := range b.table.Updates() {
		payload, err := json.Marshal(entry)
		if err != nil {
			continue
		}

		b.lock.Lock()
		for _, out := range b.conns {
			select {
			case out <- payload:
			default: // a slow client loses updates rather than stalling the stream
			}
		}
		b.lock.Unlock()
	}
}

// StreamHandler upgrades the connection and keeps it subscribed until the
// client goes away. Inbound messages are treated as override edits.
func (b *Broadcaster) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Errorf("upgrade: %v", err)
		return
	}

	out := make(chan []byte, 64)
	go func() {
		for payload := range out {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// queue the current snapshot ahead of registration so a fresh dashboard
	// isn't blank and the replay never interleaves with a broadcast
	for _, entry := range b.table.Entries() {
		payload, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		out <- payload
	}

	b.lock.Lock()
	b.conns[conn] = out
	b.lock.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var edit dashboard.Entry
		if err := json.Unmarshal(msg, &edit); err != nil {
			b.logger.Errorf("bad dashboard edit: %v", err)
			continue
		}
		if err := b.table.SetOverride(edit.Key, edit.Value); err != nil {
			b.logger.Errorf("override %s: %v", edit.Key, err)
		}
	}

	b.lock.Lock()
	delete(b.conns, conn)
	b.lock.Unlock()
	close(out)
}
