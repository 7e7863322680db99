package ibkr

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// orderStream subscribes to the gateway's order-status channel and caches
// the latest status per order id, so ack waits rarely need a REST poll.
type orderStream struct {
	conn *websocket.Conn

	mu       sync.RWMutex
	statuses map[string]domain.SubmissionStatus
	done     chan struct{}
}

// streamMessage is the envelope of a websocket frame; order updates arrive
// on the "sor" topic.
type streamMessage struct {
	Topic string          `json:"topic"`
	Args  json.RawMessage `json:"args"`
}

type streamOrderUpdate struct {
	OrderID jsonInt `json:"orderId"`
	Status  string  `json:"status"`
}

// dialOrderStream connects to the gateway websocket and subscribes to live
// order updates.
func dialOrderStream(ctx context.Context, baseURL string, httpClient *http.Client) (*orderStream, error) {
	wsURL := strings.Replace(baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1) + "/ws"

	dialer := websocket.Dialer{}
	if t, ok := httpClient.Transport.(*http.Transport); ok {
		dialer.TLSClientConfig = t.TLSClientConfig
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("sor+{}")); err != nil {
		conn.Close()
		return nil, err
	}

	s := &orderStream{
		conn:     conn,
		statuses: make(map[string]domain.SubmissionStatus),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// readLoop drains frames until the connection closes. Unparseable frames
// (heartbeats, other topics) are ignored.
func (s *orderStream) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg streamMessage
		if json.Unmarshal(data, &msg) != nil || msg.Topic != "sor" {
			continue
		}

		var updates []streamOrderUpdate
		if json.Unmarshal(msg.Args, &updates) != nil {
			continue
		}

		s.mu.Lock()
		for _, u := range updates {
			if u.OrderID == 0 {
				continue
			}
			id := strconv.FormatInt(int64(u.OrderID), 10)
			s.statuses[id] = mapOrderStatus(u.Status)
		}
		s.mu.Unlock()
	}
}

// status returns the last streamed status for an order id.
func (s *orderStream) status(orderID string) (domain.SubmissionStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[orderID]
	return st, ok
}

func (s *orderStream) close() {
	s.conn.Close()
	<-s.done
}
