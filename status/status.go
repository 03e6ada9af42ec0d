package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
	DONE
)

type Status struct {
	File     string      `json:"file,omitempty"`
	Message  string      `json:"message"`
	Time     time.Time   `json:"time"`
	Type     int         `json:"type"`
	Progress float32     `json:"progress"`
	Result   interface{} `json:"result,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// writePump owns connection writes, exits when send is closed
func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
		close(c.done)
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains control frames, needed for pongs and close detection
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.hub.unregister(c)
			return
		}
	}
}

// Hub broadcasts status messages to every connected websocket client
type Hub struct {
	lock        sync.Mutex
	clients     map[*client]bool
	lastMessage []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Attach starts serving conn, client gets last message right away.
// Returned channel is closed after connection is finished.
func (h *Hub) Attach(conn *websocket.Conn) <-chan struct{} {
	c := &client{hub: h, conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}

	h.lock.Lock()
	h.clients[c] = true
	if h.lastMessage != nil {
		c.send <- h.lastMessage
	}
	h.lock.Unlock()

	go c.writePump()
	go c.readPump()
	return c.done
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Send(s *Status) {
	if math32.IsNaN(s.Progress) || math32.IsInf(s.Progress, 0) {
		s.Progress = 0
	}
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("[status] marshal error: %v", err)
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.lastMessage = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow client
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) Info(file string, format string, a ...interface{}) {
	h.Send(&Status{File: file, Message: fmt.Sprintf(format, a...), Type: INFO})
}

func (h *Hub) Error(file string, format string, a ...interface{}) {
	h.Send(&Status{File: file, Message: fmt.Sprintf(format, a...), Type: ERROR})
}

func (h *Hub) Progress(file string, progress float32, format string, a ...interface{}) {
	h.Send(&Status{File: file, Message: fmt.Sprintf(format, a...), Type: PROGRESS, Progress: progress})
}

func (h *Hub) Done(file string, result interface{}, format string, a ...interface{}) {
	h.Send(&Status{File: file, Message: fmt.Sprintf(format, a...), Type: DONE, Progress: 1, Result: result})
}

// Writer turns every written line into INFO message of file
func (h *Hub) Writer(file string) *LineWriter {
	return &LineWriter{hub: h, file: file}
}

type LineWriter struct {
	hub  *Hub
	file string
	buf  []byte
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexByte(lw.buf, '\n')
		if i < 0 {
			break
		}
		lw.hub.Info(lw.file, "%s", lw.buf[:i])
		lw.buf = lw.buf[i+1:]
	}
	return len(p), nil
}
