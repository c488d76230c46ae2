// Package bus delivers block change batches to registered handlers and
// fans change events out to SSE clients.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/bryclee/taskcheck/internal/host"
)

// Handler consumes one change batch. A returned error is logged at the
// broker boundary and the event is discarded; there are no retries.
type Handler func(ctx context.Context, batch host.ChangeBatch) error

// Broker owns the change-event fan-out.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (handlers + SSE clients). Public methods communicate with this
// loop through channels, so no mutexes are required. Handlers run from the
// loop, one batch at a time, in subscription order.
type Broker struct {
	logger *slog.Logger

	handlerCh     chan Handler
	publishCh     chan host.ChangeBatch
	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker(logger *slog.Logger) *Broker {
	b := &Broker{
		logger:        logger,
		handlerCh:     make(chan Handler),
		publishCh:     make(chan host.ChangeBatch, 256),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var handlers []Handler
	clients := make(map[chan []byte]struct{})

	broadcast := func(eventType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case h := <-b.handlerCh:
			handlers = append(handlers, h)

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case batch := <-b.publishCh:
			for _, h := range handlers {
				if err := h(context.Background(), batch); err != nil {
					// Top-level rejection boundary: log and discard.
					b.logger.Error("bus: handler failed",
						slog.String("page", batch.Page),
						slog.String("error", err.Error()))
				}
			}
			broadcast("blocks.changed", map[string]any{
				"page":  batch.Page,
				"count": len(batch.Blocks),
			})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// OnChange registers a handler for change batches.
func (b *Broker) OnChange(h Handler) {
	if b.closed.Load() {
		return
	}
	select {
	case b.handlerCh <- h:
	case <-b.stopped:
	}
}

// Publish delivers a change batch to all registered handlers.
func (b *Broker) Publish(batch host.ChangeBatch) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- batch:
	case <-b.stopped:
	}
}

// Subscribe adds a new SSE client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes an SSE client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected SSE clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// ServeHTTP is the SSE endpoint handler.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
