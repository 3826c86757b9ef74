// Package service provides the business logic layer for the skate sim server.
//
// GameService is the main interface used by every transport (HTTP,
// WebSocket, MCP). It resolves sessions, serializes access to each session's
// level and persists the session after every mutating call. Each mutating
// operation reports the score changes the level published while it ran.
//
// SessionManager and ConfigManager are implemented by the session and config
// packages; tests substitute in-memory mocks.
//
// Runner optionally ticks every live session at a fixed rate on an ants
// worker pool so that timers (push resets, pulse brakes, debounce windows)
// progress without clients sending ticks.
//
// Usage:
//
//	sessionMgr := session.NewManager(log)
//	configMgr, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessionMgr, configMgr, log)
//
//	info, err := svc.CreateSession(ctx, "classic")
//	if err != nil {
//		return err
//	}
//	svc.Input(ctx, info.ID, service.ActionPush)
//	svc.Tick(ctx, info.ID, 1.0/60, 30)
//	svc.Overlap(ctx, info.ID, engine.ZoneEvent{ObstacleID: "rail", Zone: engine.ZoneMain})
package service
