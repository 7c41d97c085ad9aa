package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendQueueSize bounds each connection's outbound buffer. A client that
	// cannot drain events this far behind is marked dead rather than ever
	// blocking the coordinator.
	sendQueueSize = 64

	// maxRequestBytes is the application cap on a single request frame;
	// larger frames fail with MESSAGE_TOO_LARGE.
	maxRequestBytes = 64 * 1024

	// readLimitBytes is the transport cap, set well above the application
	// cap so oversized requests can still be failed politely. Frames beyond
	// it terminate the connection outright.
	readLimitBytes = 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one live websocket. The coordinator loop owns every field
// except conn, which the pumps use directly; the loop reaches the write
// pump only through the send channel, and only the loop ever closes it.
type client struct {
	key        string
	conn       *websocket.Conn
	send       chan []byte
	remote     string
	accepted   time.Time
	lastActive time.Time
	idle       bool   // idle notice already sent; cleared on traffic
	playerID   string // bound player, "" while unbound
	dead       bool   // send closed; awaiting reap
}

func newClient(conn *websocket.Conn, remote string, now time.Time) *client {
	return &client{
		key:        newConnectionKey(),
		conn:       conn,
		send:       make(chan []byte, sendQueueSize),
		remote:     remote,
		accepted:   now,
		lastActive: now,
	}
}

// readPump relays inbound frames into the coordinator mailbox until the
// socket fails or closes, then reports the closure the same way.
func (c *client) readPump(s *Server) {
	defer func() {
		_ = c.conn.Close()
		s.post(mail{kind: mailClosed, client: c})
	}()

	c.conn.SetReadLimit(readLimitBytes)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.post(mail{kind: mailRequest, client: c, frame: frame})
	}
}

// writePump drains the send channel onto the socket. When the coordinator
// closes the channel it writes a close frame so well-behaved clients see a
// normal closure instead of a dropped TCP stream.
func (c *client) writePump(s *Server) {
	defer func() {
		_ = c.conn.Close()
		s.writers.Done()
	}()

	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			// the read pump sees the broken socket and reports it
			return
		}
	}

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, message)
}
