// Package ws streams versioned match snapshots to browser clients. Commands
// go through the REST surface; the socket is push-only apart from pings.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"valorant-hub/internal/hub"
	"valorant-hub/internal/service"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

func Handler(matchSvc *service.MatchService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("match")
		if matchID == "" {
			http.Error(w, "missing match", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan hub.Snapshot, 8)
		clientID := randID(6)

		if err := matchSvc.Subscribe(matchID, clientID, out); err != nil {
			if errors.Is(err, service.ErrMatchNotFound) {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"match not found"}`))
			}
			return
		}
		defer matchSvc.Unsubscribe(matchID, clientID)

		// Writer goroutine: forward snapshots until the room closes the
		// outbox or the request ends.
		go func() {
			for snap := range out {
				payload, err := json.Marshal(map[string]any{
					"type":     "StateSnapshot",
					"snapshot": snap,
				})
				if err != nil {
					continue
				}
				writeCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
				_ = conn.Write(writeCtx, websocket.MessageText, payload)
				cancel()
			}
			_ = conn.Close(websocket.StatusNormalClosure, "match closed")
		}()

		// Reader loop: the client sends nothing meaningful; reads detect
		// disconnects and service control frames.
		for {
			readCtx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
			_, _, err := conn.Read(readCtx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
