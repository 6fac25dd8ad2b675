package hub

import (
	"context"
	"math/rand"
	"time"

	"valorant-hub/internal/domain"
	"valorant-hub/internal/engine"
	"valorant-hub/internal/rating"

	"github.com/rs/zerolog"
)

// Sink receives the room's side effects: persistence, cancellation cleanup
// and the finalize pipeline. The room calls it from its own goroutine, so
// implementations need no locking against the room.
type Sink interface {
	MatchUpdated(ctx context.Context, m domain.Match)
	MatchCancelled(ctx context.Context, m domain.Match)
	MatchFinalized(ctx context.Context, m domain.Match, scoreA, scoreB int)
}

type Timings struct {
	BotActionDelay      time.Duration
	LiveTransitionDelay time.Duration
}

type Msg interface{ isRoomMsg() }

type acceptMsg struct {
	PlayerID string
	Reply    chan error
}

type draftPickMsg struct {
	CaptainID string
	PlayerID  string
	Reply     chan error
}

type vetoBanMsg struct {
	CaptainID string
	Map       string
	Reply     chan error
}

type reportMsg struct {
	PlayerID string
	ScoreA   int
	ScoreB   int
	Reply    chan error
}

type forceGateMsg struct {
	Gate  time.Duration
	Reply chan error
}

type joinMsg struct {
	ClientID string
	Outbox   chan Snapshot
}

type leaveMsg struct{ ClientID string }

type getStateMsg struct {
	Reply chan domain.Match
}

type shutdownMsg struct{}

func (acceptMsg) isRoomMsg()    {}
func (draftPickMsg) isRoomMsg() {}
func (vetoBanMsg) isRoomMsg()   {}
func (reportMsg) isRoomMsg()    {}
func (forceGateMsg) isRoomMsg() {}
func (joinMsg) isRoomMsg()      {}
func (leaveMsg) isRoomMsg()     {}
func (getStateMsg) isRoomMsg()  {}
func (shutdownMsg) isRoomMsg()  {}

// Snapshot is what subscribed clients receive after every state change.
type Snapshot struct {
	Version        int          `json:"version"`
	Match          domain.Match `json:"match"`
	ReportsLeading int          `json:"reports_leading"`
	ReportsNeeded  int          `json:"reports_needed"`
	Cancelled      bool         `json:"cancelled,omitempty"`
}

// Room owns one match. All mutations flow through its inbox and are applied
// by a single goroutine, so concurrent callers race on the channel, not on
// the aggregate.
type Room struct {
	inbox   chan Msg
	match   domain.Match
	version int
	clients map[string]chan Snapshot

	sink    Sink
	timings Timings
	logger  zerolog.Logger
	remove  func()

	readyTimer *time.Timer
	botTimer   *time.Timer
	liveTimer  *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

func newRoom(parent context.Context, m domain.Match, sink Sink, timings Timings, logger zerolog.Logger, remove func()) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:   make(chan Msg, 64),
		match:   m,
		clients: make(map[string]chan Snapshot),
		sink:    sink,
		timings: timings,
		logger:  logger.With().Str("match_id", m.ID).Logger(),
		remove:  remove,
		ctx:     ctx,
		cancel:  cancel,
	}

	r.readyTimer = stoppedTimer()
	r.botTimer = stoppedTimer()
	r.liveTimer = stoppedTimer()
	if m.Phase == domain.PhaseReadyCheck {
		r.readyTimer.Reset(time.Until(m.ReadyExpiresAt))
	}
	// A restored room may open mid-draft or mid-veto; resume its timers.
	r.schedule()

	go r.loop()
	return r
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	defer r.shutdown()
	for {
		select {
		case <-r.ctx.Done():
			return

		case <-r.readyTimer.C:
			if r.onReadyDeadline() {
				return
			}

		case <-r.botTimer.C:
			r.onBotTurn()

		case <-r.liveTimer.C:
			r.onLiveTransition()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case acceptMsg:
				next, err := engine.Accept(r.match, msg.PlayerID, time.Now())
				r.applyReply(next, err, msg.Reply)

			case draftPickMsg:
				next, err := engine.DraftPick(r.match, msg.CaptainID, msg.PlayerID)
				r.applyReply(next, err, msg.Reply)

			case vetoBanMsg:
				next, err := engine.VetoBan(r.match, msg.CaptainID, msg.Map)
				r.applyReply(next, err, msg.Reply)

			case reportMsg:
				next, err := engine.SubmitReport(r.match, msg.PlayerID, msg.ScoreA, msg.ScoreB, time.Now())
				r.applyReply(next, err, msg.Reply)
				if err == nil {
					if a, b, ok := engine.Consensus(r.match); ok {
						r.finalize(a, b)
						return
					}
				}

			case forceGateMsg:
				// Ops/debug clock override: backdate the start so the report
				// gate is considered elapsed.
				if r.match.Phase != domain.PhaseLive {
					msg.Reply <- engine.ErrWrongPhase
					break
				}
				next := r.match
				next.StartTime = time.Now().Add(-msg.Gate)
				msg.Reply <- nil
				r.commit(next)

			case joinMsg:
				r.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- r.snapshot()

			case leaveMsg:
				delete(r.clients, msg.ClientID)

			case getStateMsg:
				msg.Reply <- r.match

			case shutdownMsg:
				return
			}
		}
	}
}

// applyReply commits a successful transition, persists the snapshot and
// reschedules timers. Errors are returned to the caller untouched.
func (r *Room) applyReply(next domain.Match, err error, reply chan error) {
	if reply != nil {
		reply <- err
	}
	if err != nil {
		return
	}
	r.commit(next)
}

func (r *Room) commit(next domain.Match) {
	prevPhase := r.match.Phase
	r.match = next
	r.version++
	r.sink.MatchUpdated(r.ctx, next)
	r.broadcast(r.snapshot())

	if prevPhase == domain.PhaseReadyCheck && next.Phase != domain.PhaseReadyCheck {
		r.readyTimer.Stop()
	}
	r.schedule()
}

// schedule arms the timers the current state needs: the bot shot-clock while
// a bot captain holds the turn, and the short veto-to-live delay once the
// map selection is fixed.
func (r *Room) schedule() {
	switch r.match.Phase {
	case domain.PhaseDraft:
		r.scheduleBot()
	case domain.PhaseVeto:
		if r.match.SelectedMap != "" {
			r.liveTimer.Reset(r.timings.LiveTransitionDelay)
			return
		}
		r.scheduleBot()
	}
}

func (r *Room) scheduleBot() {
	captain, ok := r.match.Player(r.match.CurrentCaptain())
	if ok && captain.IsBot {
		r.botTimer.Reset(r.timings.BotActionDelay)
	}
}

func (r *Room) onReadyDeadline() (stop bool) {
	if !engine.ReadyExpired(r.match, time.Now()) {
		return false
	}
	r.logger.Info().
		Int("ready", len(r.match.ReadyPlayers)).
		Msg("ready check expired, cancelling match")
	r.sink.MatchCancelled(r.ctx, r.match)

	snap := r.snapshot()
	snap.Cancelled = true
	r.broadcast(snap)
	return true
}

// onBotTurn performs the automated captain action: a uniformly random pick
// during draft, a uniformly random ban during veto.
func (r *Room) onBotTurn() {
	m := r.match
	captain := m.CurrentCaptain()
	player, ok := m.Player(captain)
	if !ok || !player.IsBot {
		return
	}

	switch m.Phase {
	case domain.PhaseDraft:
		if len(m.RemainingPool) == 0 {
			return
		}
		pick := m.RemainingPool[rand.Intn(len(m.RemainingPool))]
		next, err := engine.DraftPick(m, captain, pick)
		if err != nil {
			r.logger.Error().Err(err).Str("captain", captain).Msg("bot draft pick failed")
			return
		}
		r.commit(next)

	case domain.PhaseVeto:
		if m.SelectedMap != "" || len(m.RemainingMaps) <= 1 {
			return
		}
		ban := m.RemainingMaps[rand.Intn(len(m.RemainingMaps))]
		next, err := engine.VetoBan(m, captain, ban)
		if err != nil {
			r.logger.Error().Err(err).Str("captain", captain).Msg("bot veto ban failed")
			return
		}
		r.commit(next)
	}
}

func (r *Room) onLiveTransition() {
	next, err := engine.StartLive(r.match, time.Now())
	if err != nil {
		return
	}
	r.commit(next)
}

// finalize runs once the room observes quorum. The engine latch makes a
// second observation a no-op; the sink re-checks the persisted latch before
// any side effects.
func (r *Room) finalize(scoreA, scoreB int) {
	changes := rating.ComputeChanges(r.match, scoreA, scoreB)
	next, err := engine.Finalize(r.match, scoreA, scoreB, changes)
	if err != nil {
		r.logger.Warn().Err(err).Msg("finalize skipped")
		return
	}
	r.match = next
	r.version++

	r.sink.MatchFinalized(r.ctx, next, scoreA, scoreB)
	r.broadcast(r.snapshot())
	r.logger.Info().
		Str("winner", string(next.Winner)).
		Int("score_a", scoreA).
		Int("score_b", scoreB).
		Msg("match finalized")
}

func (r *Room) snapshot() Snapshot {
	leading, needed := engine.ConsensusTally(r.match)
	return Snapshot{
		Version:        r.version,
		Match:          r.match,
		ReportsLeading: leading,
		ReportsNeeded:  needed,
	}
}

func (r *Room) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
		default:
			// Slow client: drop it.
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.readyTimer.Stop()
	r.botTimer.Stop()
	r.liveTimer.Stop()
	r.cancel()
	if r.remove != nil {
		r.remove()
	}
}

// Accept, DraftPick, VetoBan and Report are the typed command surface used
// by the HTTP layer. Each blocks until the room applies or rejects the
// command, or the caller's context ends.

func (r *Room) Accept(ctx context.Context, playerID string) error {
	return r.do(ctx, func(reply chan error) Msg {
		return acceptMsg{PlayerID: playerID, Reply: reply}
	})
}

func (r *Room) DraftPick(ctx context.Context, captainID, playerID string) error {
	return r.do(ctx, func(reply chan error) Msg {
		return draftPickMsg{CaptainID: captainID, PlayerID: playerID, Reply: reply}
	})
}

func (r *Room) VetoBan(ctx context.Context, captainID, mapName string) error {
	return r.do(ctx, func(reply chan error) Msg {
		return vetoBanMsg{CaptainID: captainID, Map: mapName, Reply: reply}
	})
}

func (r *Room) Report(ctx context.Context, playerID string, scoreA, scoreB int) error {
	return r.do(ctx, func(reply chan error) Msg {
		return reportMsg{PlayerID: playerID, ScoreA: scoreA, ScoreB: scoreB, Reply: reply}
	})
}

func (r *Room) ForceReportGate(ctx context.Context, gate time.Duration) error {
	return r.do(ctx, func(reply chan error) Msg {
		return forceGateMsg{Gate: gate, Reply: reply}
	})
}

func (r *Room) do(ctx context.Context, build func(chan error) Msg) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- build(reply):
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) Join(clientID string, outbox chan Snapshot) {
	select {
	case r.inbox <- joinMsg{ClientID: clientID, Outbox: outbox}:
	case <-r.ctx.Done():
		close(outbox)
	}
}

func (r *Room) Leave(clientID string) {
	select {
	case r.inbox <- leaveMsg{ClientID: clientID}:
	case <-r.ctx.Done():
	}
}

// State returns the current aggregate without data races; used by handlers
// and tests.
func (r *Room) State(ctx context.Context) (domain.Match, error) {
	reply := make(chan domain.Match, 1)
	select {
	case r.inbox <- getStateMsg{Reply: reply}:
	case <-r.ctx.Done():
		return domain.Match{}, ErrRoomClosed
	case <-ctx.Done():
		return domain.Match{}, ctx.Err()
	}
	select {
	case m := <-reply:
		return m, nil
	case <-r.ctx.Done():
		return domain.Match{}, ErrRoomClosed
	case <-ctx.Done():
		return domain.Match{}, ctx.Err()
	}
}
