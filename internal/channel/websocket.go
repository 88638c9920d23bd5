// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn turns text messages into a byte stream. Every inbound message is
// one line; outbound writes are sent as one text message each.
type wsConn struct {
	conn *websocket.Conn
	buf  bytes.Buffer
	wmu  sync.Mutex
}

func (c *wsConn) Read(p []byte) (int, error) {
	for c.buf.Len() == 0 {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.buf.Write(msg)
		if !bytes.HasSuffix(msg, []byte("\n")) {
			c.buf.WriteByte('\n')
		}
	}
	return c.buf.Read(p)
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

// DialWebSocket connects to a remote debug console at url (ws:// or wss://).
func DialWebSocket(ctx context.Context, name, url string, readTimeout time.Duration) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s channel: dial %s: %w", name, url, err)
	}
	c := &wsConn{conn: conn}
	return NewStream(name, c, c, c, Options{ReadTimeout: readTimeout}), nil
}
