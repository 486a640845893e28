package client

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultReconnectDelay = 5 * time.Second

// Event is a typed message from the event stream. Data stays raw so
// handlers decode only the payloads they understand.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventHandler consumes one inbound event.
type EventHandler func(Event)

// EventClient maintains a websocket connection to the scheduler event
// stream. It authenticates right after connecting by sending a bearer
// token message, dispatches inbound events to per-type handlers, and
// reconnects after a fixed delay whenever the connection drops, until
// Close is called.
type EventClient struct {
	url            string
	token          string
	reconnectDelay time.Duration
	logger         *slog.Logger

	handlersMutex sync.RWMutex
	handlers      map[string]EventHandler

	connMutex sync.Mutex
	conn      *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

// EventOption configures an EventClient.
type EventOption func(*EventClient)

// WithReconnectDelay sets the wait between reconnect attempts.
func WithReconnectDelay(d time.Duration) EventOption {
	return func(c *EventClient) { c.reconnectDelay = d }
}

// WithEventLogger attaches a structured logger.
func WithEventLogger(logger *slog.Logger) EventOption {
	return func(c *EventClient) { c.logger = logger }
}

// NewEventClient creates an event-stream client for the given websocket
// URL. Nothing connects until Start is called.
func NewEventClient(url, token string, opts ...EventOption) *EventClient {
	c := &EventClient{
		url:            url,
		token:          token,
		reconnectDelay: defaultReconnectDelay,
		logger:         slog.Default(),
		handlers:       make(map[string]EventHandler),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnEvent registers the handler for one event type, replacing any
// previous handler for that type.
func (c *EventClient) OnEvent(eventType string, handler EventHandler) {
	c.handlersMutex.Lock()
	defer c.handlersMutex.Unlock()
	c.handlers[eventType] = handler
}

// Start runs the connect/read/reconnect loop in a goroutine.
func (c *EventClient) Start() {
	go c.run()
}

func (c *EventClient) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connectAndListen(); err != nil {
			c.logger.Warn("event stream disconnected",
				slog.String("url", c.url),
				slog.String("error", err.Error()))
		}

		select {
		case <-c.done:
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *EventClient) connectAndListen() error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		return err
	}

	c.connMutex.Lock()
	c.conn = conn
	c.connMutex.Unlock()

	c.logger.Info("event stream connected", slog.String("url", c.url))

	// Authenticate before anything else flows on the connection.
	auth := map[string]string{"type": "auth", "token": c.token}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return err
	}

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			conn.Close()
			return err
		}

		c.dispatch(event)
	}
}

func (c *EventClient) dispatch(event Event) {
	c.handlersMutex.RLock()
	handler, ok := c.handlers[event.Type]
	c.handlersMutex.RUnlock()

	if !ok {
		c.logger.Debug("unhandled event type", slog.String("type", event.Type))
		return
	}

	handler(event)
}

// Send writes one JSON message to the current connection.
func (c *EventClient) Send(v any) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	return c.conn.WriteJSON(v)
}

// Close stops the reconnect loop and closes the connection.
func (c *EventClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
