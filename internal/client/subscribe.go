package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"civicconnect.org/internal/report"
)

// Subscribe opens the WebSocket change stream. The channel closes when ctx
// ends or the connection drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan report.Change, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/v1/realtime/ws"

	header := http.Header{}
	if token := c.session.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe: %w", decodeError(resp))
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan report.Change, 16)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var ch report.Change
			if err := conn.ReadJSON(&ch); err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("change stream closed")
				}
				return
			}
			select {
			case out <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func deadline() time.Time { return time.Now().Add(time.Second) }
