package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Dial opens a client connection to a websocket URL such as ws://localhost:4000/.
//
// Postcondition: Returns a connected Conn or an error describing the failure.
func Dial(ctx context.Context, url string, writeTimeout time.Duration) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	raw, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewConn(raw, 0, writeTimeout), nil
}
