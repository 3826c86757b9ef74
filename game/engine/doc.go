// Package engine provides the core simulation for a skateboarding level.
//
// A Level owns three kinds of components, wired together explicitly when the
// level is built:
//   - SpeedController: the skater's push, brake and recovery speed model
//   - Obstacle: a jump judged by a main zone and a fail zone
//   - ScoreTracker: the level total, published to score listeners
//
// Time only moves when the level is ticked. Every timer (push reset, pulse
// brake, debounce window, fail expiry) runs on the level's virtual clock, so
// a sequence of ticks and overlap events always replays identically.
//
// Usage:
//
//	level, err := engine.NewLevel(config, log)
//	if err != nil {
//		return err
//	}
//
//	level.Push()
//	level.Tick(1.0 / 60)
//	level.OnZoneEnter(engine.ZoneEvent{ObstacleID: "rail", ActorTag: engine.PlayerTag, Zone: engine.ZoneMain})
//	state := level.GetState()
//
// Overlap events come from whatever collision layer hosts the level; the
// engine only needs the obstacle id, the actor tag and the zone that was
// entered.
package engine
