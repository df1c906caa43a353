package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/ballast/internal/events"
)

const socketWriteWait = 10 * time.Second

// EventsSocketHandler pushes portfolio events to clients over WebSocket.
// It is the bidirectional sibling of the SSE stream; clients that cannot
// hold an SSE connection open (embedded dashboards, native apps) use this.
type EventsSocketHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsSocketHandler creates a new events socket handler
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_socket").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// CORS is enforced by the router middleware
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	subscribed := parseTypesFilter(r.URL.Query().Get("types"))

	h.log.Info().Int("types", len(subscribed)).Msg("Client connected to event socket")

	// Buffered so a slow client drops events instead of blocking the bus
	eventChan := make(chan *events.Event, 100)

	eventHandler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	unsubscribes := make([]func(), 0, len(subscribed))
	for _, eventType := range subscribed {
		unsubscribes = append(unsubscribes, h.eventBus.Subscribe(eventType, eventHandler))
	}
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	ctx := r.Context()

	// Drain client frames so pings are answered and closure is noticed
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			h.log.Info().Msg("Client disconnected from event socket")
			return

		case <-readDone:
			h.log.Info().Msg("Client closed event socket")
			return

		case event := <-eventChan:
			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Warn().Err(err).Msg("Failed to write event to socket")
				return
			}
		}
	}
}

// writeEvent marshals and sends one event frame
func (h *EventsSocketHandler) writeEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      string(event.Type),
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"data":      event.Data,
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, socketWriteWait)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, payload)
}
