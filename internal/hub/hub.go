// Package hub keeps one actor-style Room per active match. Rooms serialize
// every mutation of their aggregate on a single goroutine, which is what
// makes concurrent draft picks, veto bans and score reports collapse to a
// deterministic winner.
package hub

import (
	"context"
	"errors"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"

	"github.com/rs/zerolog"
)

var ErrRoomClosed = errors.New("match room closed")

type hubMsg interface{ isHubMsg() }

type createRoom struct {
	Match domain.Match
	Sink  Sink
	Reply chan *Room
}

type getRoom struct {
	ID    string
	Reply chan *Room
}

type removeRoom struct{ ID string }

type shutdownHub struct{}

func (createRoom) isHubMsg()  {}
func (getRoom) isHubMsg()     {}
func (removeRoom) isHubMsg()  {}
func (shutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan hubMsg
	rooms   map[string]*Room
	timings Timings
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func DefaultTimings() Timings {
	return Timings{
		BotActionDelay:      constants.BotActionDelay,
		LiveTransitionDelay: constants.LiveTransitionDelay,
	}
}

func NewHub(parent context.Context, timings Timings, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan hubMsg, 64),
		rooms:   make(map[string]*Room),
		timings: timings,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			for _, room := range h.rooms {
				room.Inbox() <- shutdownMsg{}
			}
			clear(h.rooms)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case createRoom:
				if room := h.rooms[msg.Match.ID]; room != nil {
					msg.Reply <- room
					break
				}
				id := msg.Match.ID
				room := newRoom(h.ctx, msg.Match, msg.Sink, h.timings, h.logger, func() {
					h.Remove(id)
				})
				h.rooms[id] = room
				msg.Reply <- room

			case getRoom:
				msg.Reply <- h.rooms[msg.ID]

			case removeRoom:
				delete(h.rooms, msg.ID)

			case shutdownHub:
				for _, room := range h.rooms {
					room.Inbox() <- shutdownMsg{}
				}
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}

// Create registers a room for the match, or returns the existing one when a
// concurrent creation already won.
func (h *Hub) Create(m domain.Match, sink Sink) *Room {
	reply := make(chan *Room, 1)
	select {
	case h.inbox <- createRoom{Match: m, Sink: sink, Reply: reply}:
		return <-reply
	case <-h.ctx.Done():
		return nil
	}
}

// Get returns the room for a match, or nil.
func (h *Hub) Get(id string) *Room {
	reply := make(chan *Room, 1)
	select {
	case h.inbox <- getRoom{ID: id, Reply: reply}:
		return <-reply
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) Remove(id string) {
	select {
	case h.inbox <- removeRoom{ID: id}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- shutdownHub{}:
	case <-h.ctx.Done():
	}
}
