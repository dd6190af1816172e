package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Messages are flat JSON objects discriminated by a top-level "type" field.
// The full raw message is made available to handlers through the context so
// that relay-style handlers can forward it without re-encoding.

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

type RawHandlerFunc func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error

type Middleware func(next RawHandlerFunc) RawHandlerFunc

type ErrorHandlerFunc func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]RawHandlerFunc
	middlewares  []Middleware
	errorHandler ErrorHandlerFunc
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]RawHandlerFunc),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middleware applied to every handler. Must be called before
// Handle.
func (r *WSRouter) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *WSRouter) SetErrorHandler(h ErrorHandlerFunc) {
	r.errorHandler = h
}

// Handle registers a typed handler for messageType. The raw message is
// unmarshalled into T before the handler runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	h := func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
		var input T
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("failed to unmarshal %s message: %w", messageType, err)
		}

		return handler(ctx, conn, input)
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	r.routes[messageType] = h
}

// ServeConn reads messages until the connection fails or ctx is cancelled.
// Handler and routing errors are reported to the error handler and never
// terminate the loop; every failure is isolated to the message that caused
// it.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("malformed message: %w", err))
			continue
		}

		handler, exists := r.routes[head.Type]
		if !exists {
			r.errorHandler(ctx, conn, fmt.Errorf("unknown message type %q", head.Type))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, head.Type)
		msgCtx = context.WithValue(msgCtx, rawMessageKey, json.RawMessage(raw))

		if err := handler(msgCtx, conn, raw); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
