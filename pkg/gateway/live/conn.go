package live

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errOutboundFull = errors.New("outbound queue full")

// outbound serializes all writes to one websocket connection through a
// single goroutine, since gorilla conns allow only one concurrent writer.
type outbound struct {
	conn         *websocket.Conn
	frames       chan any
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration
}

func newOutbound(conn *websocket.Conn, pingInterval, writeTimeout time.Duration, queueSize int) *outbound {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &outbound{
		conn:         conn,
		frames:       make(chan any, queueSize),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// Send enqueues a frame without blocking. A full queue means the client
// is not draining; dropping the frame is preferable to stalling the
// dispatcher.
func (o *outbound) Send(payload any) error {
	select {
	case <-o.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case o.frames <- payload:
		return nil
	default:
		return errOutboundFull
	}
}

func (o *outbound) Run() {
	ticker := time.NewTicker(o.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			_ = o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
			_ = o.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(o.writeTimeout))
			return
		case frame := <-o.frames:
			_ = o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
			if err := o.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (o *outbound) Close() {
	o.closeOnce.Do(func() { close(o.done) })
}
