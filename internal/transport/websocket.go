// Package transport carries realtime protocol messages between the relay and
// the remote voice service.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/voicerelay-go/pkg/version"
)

// DefaultURL is the realtime endpoint used when none is configured.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// DefaultModel is appended as the model query parameter when the URL has none.
const DefaultModel = "gpt-4o-realtime-preview-2024-10-01"

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	closeGrace       = time.Second
)

// ErrClosed is returned by Send and Receive once the connection is closed.
var ErrClosed = errors.New("transport: connection closed")

// Config configures a WebSocket connection.
type Config struct {
	URL    string // DefaultURL if empty
	Model  string // DefaultModel if empty and URL has no model parameter
	APIKey string
	Logger *slog.Logger
	// Dialer overrides the default dialer, for tests.
	Dialer *websocket.Dialer
}

// WebSocket is a connected realtime session. Send is safe for concurrent use;
// Receive must be called from one goroutine.
type WebSocket struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens the WebSocket and completes the handshake.
func Dial(ctx context.Context, cfg Config) (*WebSocket, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "transport"))

	target, err := endpoint(cfg.URL, cfg.Model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")
	header.Set("User-Agent", version.UserAgent())

	dialer := cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = handshakeTimeout
	}

	logger.Debug("connecting", slog.String("url", target))
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	logger.Info("connected", slog.String("url", target))
	return newWebSocket(conn, logger), nil
}

func newWebSocket(conn *websocket.Conn, logger *slog.Logger) *WebSocket {
	return &WebSocket{
		conn:   conn,
		logger: logger,
		closed: make(chan struct{}),
	}
}

func endpoint(raw, model string) (string, error) {
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}

	q := u.Query()
	if q.Get("model") == "" {
		if model == "" {
			model = DefaultModel
		}
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send writes one text message.
func (w *WebSocket) Send(ctx context.Context, msg []byte) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive blocks for the next complete message. Fragmented frames are
// reassembled by the connection. Close unblocks a pending Receive.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	for {
		kind, msg, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				return nil, ErrClosed
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %w", ErrClosed, err)
			}
			return nil, fmt.Errorf("read message: %w", err)
		}
		switch kind {
		case websocket.TextMessage, websocket.BinaryMessage:
			return msg, nil
		}
	}
}

// Close sends a close frame and releases the connection. Safe to call more than once.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		w.logger.Info("closing connection")

		// WriteControl may run concurrently with a pending Send
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))

		err = w.conn.Close()
	})
	return err
}
