package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// MaxPayloadBytes bounds one datagram.
const MaxPayloadBytes = 8 * 1024

const sendTimeout = time.Second

// ErrPayloadTooLarge is reported for datagrams of MaxPayloadBytes or more.
var ErrPayloadTooLarge = errors.New("payload too large")

// Handler receives every valid event. It runs on the collector's read
// goroutine, so events for the same socket are handled in arrival order.
type Handler func(Event)

// Collector receives events on a unix datagram socket.
type Collector struct {
	path   string
	handle Handler

	// OnDrop, if set, is called with the reason for every rejected
	// datagram. Set it before Start.
	OnDrop func(error)

	received atomic.Int64
	dropped  atomic.Int64

	mu   sync.Mutex
	conn *net.UnixConn
}

// NewCollector returns a collector that will listen on socketPath.
func NewCollector(handle Handler, socketPath string) *Collector {
	return &Collector{path: socketPath, handle: handle}
}

func (c *Collector) SocketPath() string { return c.path }

// Stats returns the number of accepted and rejected datagrams so far.
func (c *Collector) Stats() (received, dropped int64) {
	return c.received.Load(), c.dropped.Load()
}

// Start binds the socket, replacing a stale one, and reads events until
// ctx is cancelled. The socket directory is private to the user.
func (c *Collector) Start(ctx context.Context) error {
	if c.handle == nil {
		return errors.New("handler is required")
	}
	if c.path == "" {
		return errors.New("socket path is required")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: c.path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.path, err)
	}
	if err := os.Chmod(c.path, 0o600); err != nil {
		conn.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.stop()
	}()
	go c.readLoop(conn)
	return nil
}

func (c *Collector) readLoop(conn *net.UnixConn) {
	// One spare byte tells an exactly-full datagram from a truncated one.
	buf := make([]byte, MaxPayloadBytes+1)
	for {
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		e, err := Decode(buf[:n])
		if err != nil {
			c.dropped.Add(1)
			if c.OnDrop != nil {
				c.OnDrop(err)
			}
			continue
		}
		c.received.Add(1)
		c.handle(e)
	}
}

func (c *Collector) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Decode parses and validates one datagram.
func Decode(payload []byte) (Event, error) {
	if len(payload) == 0 {
		return Event{}, errors.New("empty payload")
	}
	if len(payload) >= MaxPayloadBytes {
		return Event{}, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, len(payload))
	}
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Send validates e and writes it as one datagram to the collector at
// socketPath.
func Send(socketPath string, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if len(payload) >= MaxPayloadBytes {
		return fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, len(payload))
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: socketPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()
	if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}
