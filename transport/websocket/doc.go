// Package websocket pushes level updates to browser clients.
//
// A single Hub goroutine owns the client registry. Clients join a session by
// connecting to /ws?sessionId=abc1 and receive JSON messages for that session
// only:
//
//	{"session_id":"abc1","event":"state_update","level_state":{...}}
//	{"session_id":"abc1","event":"score_updated","data":{"total":15,"changes":[15]}}
//
// Broadcasts are queued without blocking the caller. When the queue is full
// the message is dropped and a warning logged; a client whose send buffer is
// full is disconnected.
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	hub.BroadcastState(sessionID, level.GetState())
package websocket
