package testutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// ErrPipeClosed is returned by a PipeConn after either end is closed.
var ErrPipeClosed = errors.New("pipe closed")

// PipeConn is an in-memory protocol.Conn. Frames sent on one end are
// received on its peer in order.
type PipeConn struct {
	name string
	in   chan []byte
	out  chan []byte
	once *sync.Once
	done chan struct{}
}

// NewPipe returns two connected ends. Closing either end closes both.
//
// Postcondition: Frames sent on server arrive on client and vice versa.
func NewPipe(name string) (server *PipeConn, client *PipeConn) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	once := &sync.Once{}
	done := make(chan struct{})
	server = &PipeConn{name: name + "/server", in: a, out: b, once: once, done: done}
	client = &PipeConn{name: name + "/client", in: b, out: a, once: once, done: done}
	return server, client
}

// Send encodes v and queues it for the peer.
func (p *PipeConn) Send(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	return p.SendRaw(data)
}

// SendRaw queues data for the peer without encoding.
func (p *PipeConn) SendRaw(data []byte) error {
	select {
	case <-p.done:
		return ErrPipeClosed
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.done:
		return ErrPipeClosed
	}
}

// Receive blocks until a frame arrives or the pipe closes. Frames queued
// before the close are still delivered.
func (p *PipeConn) Receive() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		select {
		case data := <-p.in:
			return data, nil
		default:
			return nil, ErrPipeClosed
		}
	}
}

// Close closes both ends.
func (p *PipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// Closed reports whether the pipe has been closed.
func (p *PipeConn) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// RemoteAddr returns the pipe name.
func (p *PipeConn) RemoteAddr() string { return p.name }

// FrameReader reads decoded server frames from a client end, failing the test
// on timeout.
type FrameReader struct {
	t    *testing.T
	conn protocol.Conn
}

// NewFrameReader wraps conn for test reads.
func NewFrameReader(t *testing.T, conn protocol.Conn) *FrameReader {
	return &FrameReader{t: t, conn: conn}
}

// Next returns the next decoded server frame.
//
// Postcondition: Returns a frame or fails the test after timeout.
func (r *FrameReader) Next(timeout time.Duration) any {
	r.t.Helper()
	type result struct {
		frame any
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := protocol.ReceiveServerFrame(r.conn)
		ch <- result{f, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			r.t.Fatalf("reading frame from %s: %v", r.conn.RemoteAddr(), res.err)
		}
		return res.frame
	case <-time.After(timeout):
		r.t.Fatalf("timed out after %s waiting for frame on %s", timeout, r.conn.RemoteAddr())
		return nil
	}
}

// NextRoomList reads a frame and requires it to be a RoomList.
func (r *FrameReader) NextRoomList(timeout time.Duration) protocol.RoomList {
	r.t.Helper()
	f := r.Next(timeout)
	rl, ok := f.(protocol.RoomList)
	if !ok {
		r.t.Fatalf("expected RoomList, got %T: %+v", f, f)
	}
	return rl
}

// NextGameStart reads a frame and requires it to be a GameStart.
func (r *FrameReader) NextGameStart(timeout time.Duration) protocol.GameStart {
	r.t.Helper()
	f := r.Next(timeout)
	gs, ok := f.(protocol.GameStart)
	if !ok {
		r.t.Fatalf("expected GameStart, got %T: %+v", f, f)
	}
	return gs
}

// NextBoard reads a frame and requires it to be a BoardUpdate.
func (r *FrameReader) NextBoard(timeout time.Duration) protocol.BoardUpdate {
	r.t.Helper()
	f := r.Next(timeout)
	bu, ok := f.(protocol.BoardUpdate)
	if !ok {
		r.t.Fatalf("expected BoardUpdate, got %T: %+v", f, f)
	}
	return bu
}

// NextError reads a frame and requires it to be an ErrorFrame.
func (r *FrameReader) NextError(timeout time.Duration) protocol.ErrorFrame {
	r.t.Helper()
	f := r.Next(timeout)
	ef, ok := f.(protocol.ErrorFrame)
	if !ok {
		r.t.Fatalf("expected ErrorFrame, got %T: %+v", f, f)
	}
	return ef
}
