// Package api exposes the game service over HTTP with gorilla/mux.
//
// Sessions:
//
//	POST   /api/sessions                 {"config_id":"classic"}
//	GET    /api/sessions                 ?sort=created|accessed&order=asc|desc&limit=N
//	GET    /api/sessions/unified         ?sessionIds=a,b or ?configName=x
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//
// Simulation:
//
//	GET  /api/sessions/{id}/state
//	POST /api/sessions/{id}/tick      {"delta_seconds":0.1,"steps":15}
//	POST /api/sessions/{id}/input     {"action":"push|brake|release|move"}
//	POST /api/sessions/{id}/overlap   {"obstacle_id":"rail","zone":"main|fail","actor_tag":"Player","height":120}
//	POST /api/sessions/{id}/reset
//	GET  /api/sessions/{id}/history   ?page=1&limit=20&order=desc
//
// Configuration:
//
//	GET  /api/configs
//	POST /api/configs                 id derived from the config name
//	GET  /api/configs/{name}
//	PUT  /api/configs/{name}
//
// Every mutation is broadcast to websocket clients of the session (/ws?sessionId=).
// Errors are JSON {"error":"..."}: 400 for invalid input or config, 404 for
// unknown sessions and configs, 422 for unknown obstacles, 409 for id clashes.
package api
