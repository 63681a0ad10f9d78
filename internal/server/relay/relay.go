// Package relay bridges a browser WebSocket to the backend event stream
// for a topic. Frames are forwarded as they arrive; when either side
// goes away the other one is closed too.
package relay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	dialWait  = 10 * time.Second
)

// BackendURL returns the backend stream URL for topic: the http(s) scheme
// of backendURL becomes ws(s).
func BackendURL(backendURL, topic, apiKey string) string {
	base := strings.TrimRight(backendURL, "/")
	if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return base + "/api/v1/ws/" + url.PathEscape(topic) + "?api_key=" + url.QueryEscape(apiKey)
}

type Relay struct {
	backendURL string
	apiKey     string
	maxMessage int64
	upgrader   websocket.Upgrader
	dialer     *websocket.Dialer
	logger     logging.Logger
}

// New returns a Relay dialing backendURL. Browser origins must be listed
// in allowedOrigins ("*" allows any); requests without an Origin header
// are accepted. Frames larger than maxMessage bytes, from either side,
// end the session with 1009; 0 disables the cap.
func New(backendURL, apiKey string, allowedOrigins []string, maxMessage int64, logger logging.Logger) *Relay {
	return &Relay{
		backendURL: backendURL,
		apiKey:     apiKey,
		maxMessage: maxMessage,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialWait,
		},
		logger: logger.With("module", "relay"),
	}
}

// ServeHTTP upgrades the request and relays frames for the {topic} URL
// parameter until one side closes.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	ctx := r.Context()

	client, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Warn(ctx, "websocket upgrade failed", "topic", topic, "error", err)
		return
	}
	defer client.Close()
	rl.limit(client)
	rl.logger.Info(ctx, "client connected", "topic", topic)

	dialCtx, cancel := context.WithTimeout(ctx, dialWait)
	defer cancel()

	backend, _, err := rl.dialer.DialContext(dialCtx, BackendURL(rl.backendURL, topic, rl.apiKey), nil)
	if err != nil {
		rl.logger.Error(ctx, "backend dial failed", "topic", topic, "error", err)
		closeWith(client, websocket.CloseInternalServerErr, "backend unavailable")
		return
	}
	defer backend.Close()
	rl.limit(backend)

	errc := make(chan error, 2)
	go pump(backend, client, websocket.TextMessage, errc)
	go pump(client, backend, 0, errc)

	err = <-errc
	if isNormalClose(err) {
		rl.logger.Info(ctx, "relay closed", "topic", topic)
	} else {
		rl.logger.Warn(ctx, "relay closed with error", "topic", topic, "error", err)
	}

	code := websocket.CloseNormalClosure
	var ce *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		code = websocket.CloseMessageTooBig
	case errors.As(err, &ce) && sendable(ce.Code):
		code = ce.Code
	}
	closeWith(client, code, "")
	closeWith(backend, code, "")
}

func (rl *Relay) limit(c *websocket.Conn) {
	if rl.maxMessage > 0 {
		c.SetReadLimit(rl.maxMessage)
	}
}

// pump copies frames from src to dst. A non-zero as forces the frame type
// written to dst.
func pump(dst, src *websocket.Conn, as int, errc chan<- error) {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if as != 0 {
			mt = as
		}
		_ = dst.SetWriteDeadline(time.Now().Add(writeWait))
		if err := dst.WriteMessage(mt, msg); err != nil {
			errc <- err
			return
		}
	}
}

func closeWith(c *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.Close()
}

// sendable reports whether code may appear in a close frame on the wire.
func sendable(code int) bool {
	switch code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return false
	}
	return code >= 1000
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
