package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"
)

func testPlayers() []domain.MatchPlayer {
	players := make([]domain.MatchPlayer, 10)
	for i := range players {
		players[i] = domain.MatchPlayer{
			UserID:   fmt.Sprintf("p%d", i+1),
			Username: fmt.Sprintf("player-%d", i+1),
			Points:   2000 - float64(i)*100,
		}
	}
	return players
}

func newReadyCheckMatch(t *testing.T) domain.Match {
	t.Helper()
	m, err := NewMatch("m1", testPlayers(), time.Now())
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return m
}

func newDraftMatch(t *testing.T) domain.Match {
	t.Helper()
	m := newReadyCheckMatch(t)
	var err error
	for _, p := range m.Players {
		m, err = Accept(m, p.UserID, time.Now())
		if err != nil {
			t.Fatalf("Accept(%s): %v", p.UserID, err)
		}
	}
	if m.Phase != domain.PhaseDraft {
		t.Fatalf("expected DRAFT after all accepts, got %s", m.Phase)
	}
	return m
}

func runDraft(t *testing.T, m domain.Match) domain.Match {
	t.Helper()
	var err error
	for m.Phase == domain.PhaseDraft {
		captain := m.CurrentCaptain()
		m, err = DraftPick(m, captain, m.RemainingPool[0])
		if err != nil {
			t.Fatalf("DraftPick: %v", err)
		}
	}
	return m
}

func runVeto(t *testing.T, m domain.Match) domain.Match {
	t.Helper()
	var err error
	for m.SelectedMap == "" {
		captain := m.CurrentCaptain()
		m, err = VetoBan(m, captain, m.RemainingMaps[0])
		if err != nil {
			t.Fatalf("VetoBan: %v", err)
		}
	}
	return m
}

func newLiveMatch(t *testing.T) domain.Match {
	t.Helper()
	m := runVeto(t, runDraft(t, newDraftMatch(t)))
	m, err := StartLive(m, time.Now())
	if err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	return m
}

func reportTime(m domain.Match) time.Time {
	return m.StartTime.Add(constants.ReportGate)
}

func TestNewMatch_RequiresTenPlayers(t *testing.T) {
	_, err := NewMatch("m1", testPlayers()[:7], time.Now())
	if err == nil {
		t.Fatalf("expected error for 7 players")
	}
}

func TestNewMatch_BotsAutoReady(t *testing.T) {
	players := testPlayers()
	players[4].IsBot = true
	players[9].IsBot = true

	m, err := NewMatch("m1", players, time.Now())
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	if len(m.ReadyPlayers) != 2 {
		t.Fatalf("expected 2 auto-ready bots, got %d", len(m.ReadyPlayers))
	}
}

func TestAccept_DuplicateIsNoOp(t *testing.T) {
	m := newReadyCheckMatch(t)

	m, err := Accept(m, "p1", time.Now())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	m, err = Accept(m, "p1", time.Now())
	if err != nil {
		t.Fatalf("second Accept should be a no-op, got %v", err)
	}
	if got := len(m.ReadyPlayers); got != 1 {
		t.Fatalf("ReadyPlayers = %d, want 1", got)
	}
}

func TestAccept_NonParticipantRejected(t *testing.T) {
	m := newReadyCheckMatch(t)
	_, err := Accept(m, "stranger", time.Now())
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("want ErrNotParticipant, got %v", err)
	}
}

func TestStartDraft_CaptainSeeding(t *testing.T) {
	m := newDraftMatch(t)

	// The two highest-rated players become captains.
	if m.CaptainA != "p1" || m.CaptainB != "p2" {
		t.Fatalf("captains = %s/%s, want p1/p2", m.CaptainA, m.CaptainB)
	}
	if len(m.TeamA) != 1 || m.TeamA[0] != "p1" {
		t.Fatalf("teamA not seeded with captain: %v", m.TeamA)
	}
	if len(m.TeamB) != 1 || m.TeamB[0] != "p2" {
		t.Fatalf("teamB not seeded with captain: %v", m.TeamB)
	}
	if m.Turn != domain.TeamB {
		t.Fatalf("first pick belongs to captain B, got turn %s", m.Turn)
	}
	if len(m.RemainingPool) != 8 {
		t.Fatalf("pool = %d, want 8", len(m.RemainingPool))
	}
}

func TestStartDraft_TieBreakByUserID(t *testing.T) {
	players := testPlayers()
	for i := range players {
		players[i].Points = 1000
	}
	m, err := NewMatch("m1", players, time.Now())
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	m, err = StartDraft(m)
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	if m.CaptainA != "p1" || m.CaptainB != "p10" {
		t.Fatalf("tie-break captains = %s/%s, want p1/p10", m.CaptainA, m.CaptainB)
	}
}

func TestDraft_InvariantsHoldEveryStep(t *testing.T) {
	m := newDraftMatch(t)

	prevTurn := m.Turn
	for m.Phase == domain.PhaseDraft {
		total := len(m.TeamA) + len(m.TeamB) + len(m.RemainingPool)
		if total != 10 {
			t.Fatalf("teamA+teamB+pool = %d, want 10", total)
		}
		if diff := len(m.TeamA) - len(m.TeamB); diff < -1 || diff > 1 {
			t.Fatalf("team sizes differ by more than 1: %d vs %d", len(m.TeamA), len(m.TeamB))
		}

		var err error
		m, err = DraftPick(m, m.CurrentCaptain(), m.RemainingPool[0])
		if err != nil {
			t.Fatalf("DraftPick: %v", err)
		}
		if m.Phase == domain.PhaseDraft && m.Turn == prevTurn {
			t.Fatalf("turn did not alternate")
		}
		prevTurn = m.Turn
	}

	if len(m.TeamA) != 5 || len(m.TeamB) != 5 {
		t.Fatalf("final teams %d/%d, want 5/5", len(m.TeamA), len(m.TeamB))
	}
	if m.Phase != domain.PhaseVeto {
		t.Fatalf("phase after draft = %s, want VETO", m.Phase)
	}
	if m.Turn != domain.TeamA {
		t.Fatalf("veto opens with captain A, got %s", m.Turn)
	}
}

func TestDraftPick_Rejections(t *testing.T) {
	m := newDraftMatch(t)

	cases := []struct {
		name    string
		captain string
		pick    string
		wantErr error
	}{
		{"wrong turn", m.CaptainA, m.RemainingPool[0], ErrWrongTurn},
		{"not a captain", "p5", m.RemainingPool[0], ErrNotCaptain},
		{"player not in pool", m.CaptainB, m.CaptainA, ErrIllegalPick},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DraftPick(m, tc.captain, tc.pick)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDraftPick_WrongPhase(t *testing.T) {
	m := newReadyCheckMatch(t)
	_, err := DraftPick(m, "p1", "p3")
	if !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("want ErrWrongPhase, got %v", err)
	}
}

func TestVeto_ConvergesToOneMap(t *testing.T) {
	m := runDraft(t, newDraftMatch(t))

	bans := 0
	prevTurn := m.Turn
	for m.SelectedMap == "" {
		var err error
		m, err = VetoBan(m, m.CurrentCaptain(), m.RemainingMaps[0])
		if err != nil {
			t.Fatalf("VetoBan: %v", err)
		}
		bans++
		if m.SelectedMap == "" && m.Turn == prevTurn {
			t.Fatalf("veto turn did not alternate")
		}
		prevTurn = m.Turn
	}

	if bans != len(MapPool)-1 {
		t.Fatalf("bans = %d, want %d", bans, len(MapPool)-1)
	}
	if len(m.RemainingMaps) != 1 || m.RemainingMaps[0] != m.SelectedMap {
		t.Fatalf("selected map not the last survivor: %v / %s", m.RemainingMaps, m.SelectedMap)
	}
	if len(m.BannedMaps) != len(MapPool)-1 {
		t.Fatalf("ban log = %d entries, want %d", len(m.BannedMaps), len(MapPool)-1)
	}

	// Veto is over: one more ban must be refused.
	_, err := VetoBan(m, m.CurrentCaptain(), m.RemainingMaps[0])
	if !errors.Is(err, ErrVetoComplete) {
		t.Fatalf("want ErrVetoComplete, got %v", err)
	}
}

func TestVetoBan_UnknownMap(t *testing.T) {
	m := runDraft(t, newDraftMatch(t))
	_, err := VetoBan(m, m.CurrentCaptain(), "de_dust2")
	if !errors.Is(err, ErrIllegalBan) {
		t.Fatalf("want ErrIllegalBan, got %v", err)
	}
}

func TestSubmitReport_GateAndValidation(t *testing.T) {
	m := newLiveMatch(t)

	if _, err := SubmitReport(m, "p1", 13, 7, m.StartTime.Add(time.Minute)); !errors.Is(err, ErrReportTooEarly) {
		t.Fatalf("want ErrReportTooEarly, got %v", err)
	}

	cases := []struct {
		name   string
		scoreA int
		scoreB int
	}{
		{"negative score", -1, 13},
		{"draw", 12, 12},
		{"below minimum rounds", 12, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SubmitReport(m, "p1", tc.scoreA, tc.scoreB, reportTime(m))
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

func TestSubmitReport_DuplicateRejected(t *testing.T) {
	m := newLiveMatch(t)

	m, err := SubmitReport(m, "p1", 13, 7, reportTime(m))
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if _, err := SubmitReport(m, "p1", 13, 7, reportTime(m)); !errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("want ErrDuplicateReport, got %v", err)
	}
	if len(m.PlayerReports) != 1 {
		t.Fatalf("reports = %d, want 1", len(m.PlayerReports))
	}
}

func TestConsensus_QuorumRules(t *testing.T) {
	m := newLiveMatch(t)
	at := reportTime(m)

	var err error
	// Two for 13-5, one for 13-6: no quorum.
	for _, r := range []struct {
		player string
		a, b   int
	}{
		{"p1", 13, 5}, {"p2", 13, 5}, {"p3", 13, 6},
	} {
		m, err = SubmitReport(m, r.player, r.a, r.b, at)
		if err != nil {
			t.Fatalf("SubmitReport(%s): %v", r.player, err)
		}
	}
	if _, _, ok := Consensus(m); ok {
		t.Fatalf("no group reached quorum, but consensus reported")
	}

	leading, needed := ConsensusTally(m)
	if leading != 2 || needed != 1 {
		t.Fatalf("tally = %d leading / %d needed, want 2/1", leading, needed)
	}

	// A second 13-6 still no quorum; a third 13-5 closes it.
	m, err = SubmitReport(m, "p4", 13, 6, at)
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	if _, _, ok := Consensus(m); ok {
		t.Fatalf("consensus before quorum")
	}
	m, err = SubmitReport(m, "p5", 13, 5, at)
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}

	a, b, ok := Consensus(m)
	if !ok || a != 13 || b != 5 {
		t.Fatalf("consensus = %d-%d ok=%v, want 13-5 true", a, b, ok)
	}
}

func TestFinalize_LatchFiresOnce(t *testing.T) {
	m := newLiveMatch(t)
	at := reportTime(m)

	var err error
	for _, p := range []string{"p1", "p2", "p3"} {
		m, err = SubmitReport(m, p, 13, 7, at)
		if err != nil {
			t.Fatalf("SubmitReport: %v", err)
		}
	}

	m, err = Finalize(m, 13, 7, map[string]float64{})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if m.Phase != domain.PhaseFinished || !m.ResultReported {
		t.Fatalf("match not finished after finalize: phase=%s latch=%v", m.Phase, m.ResultReported)
	}
	if m.Winner != domain.TeamA {
		t.Fatalf("winner = %s, want A", m.Winner)
	}

	if _, err := Finalize(m, 13, 7, nil); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("second finalize: want ErrAlreadyFinalized, got %v", err)
	}
	if _, err := SubmitReport(m, "p4", 13, 7, at); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("report after finalize: want ErrAlreadyFinalized, got %v", err)
	}
}

func TestReadyExpired(t *testing.T) {
	m := newReadyCheckMatch(t)
	if ReadyExpired(m, m.ReadyExpiresAt.Add(-time.Second)) {
		t.Fatalf("not expired yet")
	}
	if !ReadyExpired(m, m.ReadyExpiresAt.Add(time.Second)) {
		t.Fatalf("should be expired")
	}
}
