// Package session manages live level sessions for the skate sim server.
//
// Manager keeps sessions in memory under 4-character hex ids, looked up
// case-insensitively. A SessionPersistence backend optionally stores every
// session so that it survives restarts:
//   - FilePersistence writes one JSON file per session
//   - RedisPersistence stores one JSON value per session under
//     skatesim:session:<id>, indexed by the set skatesim:sessions
//
// A stored session holds its config id and a LevelState snapshot. Loading
// rebuilds the level from the config and restores the snapshot; pending
// timers are not stored, so a pushing skater gets a fresh push reset.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configMgr, log)
//	if err != nil {
//		return err
//	}
//	manager := session.NewManagerWithPersistence(persistence, log)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		return err
//	}
//
//	sess, err := manager.Create("", "classic", configMgr.GetDefault())
package session
