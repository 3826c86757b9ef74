package main

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/skatesim/api"
	"github.com/wricardo/mcp-training/skatesim/game/config"
	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
	"github.com/wricardo/mcp-training/skatesim/game/session"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	svc := service.NewGameService(session.NewManager(logger.NewNop()), configs, logger.NewNop())
	ts := httptest.NewServer(api.NewServer(svc, nil, logger.NewNop()))
	t.Cleanup(ts.Close)
	return ts
}

func defaultOptions() rideOptions {
	return rideOptions{RunUpDelta: 0.1, RunUpSteps: 5}
}

func TestRideStrategy_Line(t *testing.T) {
	strategy := NewRideStrategy(engine.DefaultLevelConfig(), 0, 1)

	var ids []string
	for _, o := range strategy.Line() {
		ids = append(ids, o.ID)
	}
	if got := strings.Join(ids, ","); got != "gap,rail,ledge,box" {
		t.Errorf("Expected line gap,rail,ledge,box, got %s", got)
	}
}

func TestRideStrategy_NextAttempt(t *testing.T) {
	zones := ObstaclePlan{ID: "rail", Resolution: engine.ResolutionZones, Points: 10, Penalty: 5}
	height := ObstaclePlan{ID: "box", Resolution: engine.ResolutionHeight, ClearHeight: 100, Points: 10, Penalty: 5}

	tests := []struct {
		name      string
		bailRate  float64
		plan      ObstaclePlan
		wantZones []engine.ZoneKind
		wantH     float64
	}{
		{"clean zones", 0, zones, []engine.ZoneKind{engine.ZoneMain}, 0},
		{"bail zones", 1, zones, []engine.ZoneKind{engine.ZoneFail, engine.ZoneMain}, 0},
		{"clean height", 0, height, []engine.ZoneKind{engine.ZoneMain}, 120},
		{"bail height", 1, height, []engine.ZoneKind{engine.ZoneMain}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := NewRideStrategy(engine.DefaultLevelConfig(), tt.bailRate, 1)
			attempt := strategy.NextAttempt(tt.plan)

			if attempt.Bail != (tt.bailRate == 1) {
				t.Errorf("Expected bail=%v, got %v", tt.bailRate == 1, attempt.Bail)
			}
			if len(attempt.Events) != len(tt.wantZones) {
				t.Fatalf("Expected %d events, got %+v", len(tt.wantZones), attempt.Events)
			}
			for i, ev := range attempt.Events {
				if ev.Zone != tt.wantZones[i] || ev.ActorTag != engine.PlayerTag || ev.ObstacleID != tt.plan.ID {
					t.Errorf("Event %d: unexpected %+v", i, ev)
				}
			}
			last := attempt.Events[len(attempt.Events)-1]
			if last.Height != tt.wantH {
				t.Errorf("Expected height %.0f, got %.0f", tt.wantH, last.Height)
			}
		})
	}
}

func TestRideStrategy_LearnsFromClears(t *testing.T) {
	strategy := NewRideStrategy(engine.DefaultLevelConfig(), 0.8, 1)
	attempt := Attempt{ObstacleID: "rail"}

	if got := strategy.bailChance("rail"); got != 0.8 {
		t.Fatalf("Expected initial chance 0.8, got %v", got)
	}
	strategy.Record(attempt, engine.OutcomeCleared)
	strategy.Record(attempt, engine.OutcomeCleared)
	if got := strategy.bailChance("rail"); got != 0.2 {
		t.Errorf("Expected chance 0.2 after two clears, got %v", got)
	}
	strategy.Record(attempt, engine.OutcomeFailed)
	strategy.Record(attempt, engine.OutcomeDebounced)

	clears, bails := strategy.Stats()
	if clears != 2 || bails != 1 {
		t.Errorf("Expected 2 clears / 1 bail, got %d / %d", clears, bails)
	}
}

func TestClient_SessionLifecycle(t *testing.T) {
	ts := newAPIServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL + "/")

	info, err := c.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if c.SessionID() != info.ID || info.LevelConfig == nil {
		t.Fatalf("Unexpected session info: %+v", info)
	}

	push, err := c.Input(ctx, service.ActionPush)
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if push.Speed != 656.25 || !push.IsPushing {
		t.Errorf("Expected boosted push, got %+v", push)
	}

	res, err := c.Overlap(ctx, engine.ZoneEvent{ObstacleID: "rail", ActorTag: engine.PlayerTag, Zone: engine.ZoneMain})
	if err != nil {
		t.Fatalf("Overlap failed: %v", err)
	}
	if res.Outcome != engine.OutcomeCleared || res.Score != 10 {
		t.Errorf("Expected cleared with 10, got %s / %d", res.Outcome, res.Score)
	}

	state, err := c.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if state.Score != 0 {
		t.Errorf("Expected score 0 after reset, got %d", state.Score)
	}

	other := NewClient(ts.URL)
	if _, err := other.Resume(ctx, info.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if _, err := other.Resume(ctx, "zzzz"); err == nil || other.SessionID() != "" {
		t.Errorf("Expected resume of unknown session to fail and unbind, got %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	ts := newAPIServer(t)
	c := NewClient(ts.URL)
	if _, err := c.CreateSession(context.Background(), ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err := c.Overlap(context.Background(), engine.ZoneEvent{ObstacleID: "nope", ActorTag: engine.PlayerTag, Zone: engine.ZoneMain})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("Expected 422 error for unknown obstacle, got %v", err)
	}
}

func TestPlay_CleanRide(t *testing.T) {
	ts := newAPIServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)
	info, err := c.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	strategy := NewRideStrategy(info.LevelConfig, 0, 1)
	target := engine.MaxAchievableScore(info.LevelConfig)
	run, err := play(ctx, c, strategy, target, 3, defaultOptions(), logger.NewNop())
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if run != 1 {
		t.Errorf("Expected first run to reach %d, got run %d", target, run)
	}
	if clears, bails := strategy.Stats(); clears != 4 || bails != 0 {
		t.Errorf("Expected 4 clears / 0 bails, got %d / %d", clears, bails)
	}
}

func TestPlay_AlwaysBails(t *testing.T) {
	ts := newAPIServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)
	info, err := c.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	strategy := NewRideStrategy(info.LevelConfig, 1, 1)
	state, err := c.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	report, err := ride(ctx, c, strategy, state.Skater, defaultOptions(), logger.NewNop())
	if err != nil {
		t.Fatalf("ride failed: %v", err)
	}
	if report.Score != engine.MinAchievableScore(info.LevelConfig) || report.Bails != 4 || report.Clears != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}

	if _, err := play(ctx, c, strategy, 1, 2, defaultOptions(), logger.NewNop()); err == nil {
		t.Error("Expected play to give up when every attempt bails")
	}
}

func TestOpenSession(t *testing.T) {
	t.Chdir(t.TempDir())
	ts := newAPIServer(t)
	ctx := context.Background()

	first, err := openSession(ctx, NewClient(ts.URL), "", "", logger.NewNop())
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	saved, err := os.ReadFile(sessionFile)
	if err != nil || string(saved) != first.ID {
		t.Fatalf("Expected saved session %s, got %q (%v)", first.ID, saved, err)
	}

	second, err := openSession(ctx, NewClient(ts.URL), "", "", logger.NewNop())
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected saved session %s to be resumed, got %s", first.ID, second.ID)
	}

	fresh, err := openSession(ctx, NewClient(ts.URL), "zzzz", "", logger.NewNop())
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	if fresh.ID == "zzzz" {
		t.Error("Unknown session should not be resumed")
	}
}
