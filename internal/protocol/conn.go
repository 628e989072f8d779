package protocol

import "fmt"

// Conn is one persistent, message-oriented, bidirectional client connection.
// Send and Receive may be used from different goroutines, but each must have
// a single caller at a time.
type Conn interface {
	// Send writes v as one JSON text frame.
	Send(v any) error
	// Receive blocks until the next text frame arrives.
	Receive() ([]byte, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// ReceiveEnvelope reads and decodes the next client frame from conn.
func ReceiveEnvelope(conn Conn) (Envelope, error) {
	data, err := conn.Receive()
	if err != nil {
		return Envelope{}, err
	}
	return DecodeEnvelope(data)
}

// ReceiveServerFrame reads and decodes the next server frame from conn.
func ReceiveServerFrame(conn Conn) (any, error) {
	data, err := conn.Receive()
	if err != nil {
		return nil, err
	}
	return DecodeServerFrame(data)
}

// SendError writes an ErrorFrame describing err.
func SendError(conn Conn, err error) error {
	if sendErr := conn.Send(NewErrorFrame(err)); sendErr != nil {
		return fmt.Errorf("sending error frame: %w", sendErr)
	}
	return nil
}
