package testutil

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
)

// WSClient is a WebSocket game client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials url and returns a test client.
//
// Precondition: url must be a ws:// URL with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// SendDoc marshals doc and writes it as one binary frame.
//
// Postcondition: doc is written to the connection or the test fails.
func (c *WSClient) SendDoc(doc bson.D) {
	c.t.Helper()
	data, err := bson.Marshal(doc)
	if err != nil {
		c.t.Fatalf("marshalling %v: %v", doc, err)
	}
	c.SendRaw(websocket.BinaryMessage, data)
}

// SendRaw writes one frame of the given type.
func (c *WSClient) SendRaw(messageType int, data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.t.Fatalf("sending frame: %v", err)
	}
}

// ReadDoc reads the next binary frame as a BSON document.
//
// Postcondition: Returns the document or fails the test on timeout.
func (c *WSClient) ReadDoc(timeout time.Duration) bson.Raw {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading document: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			return bson.Raw(data)
		}
	}
}

// ExpectClosed waits for the server to close the connection.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				c.t.Fatalf("connection still open after %s", timeout)
			}
			return
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
