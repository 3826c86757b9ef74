// Package mcp exposes the skate server to AI agents over the Model Context
// Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running server (api package), so MCP agents and HTTP clients share the same
// sessions. Tools cover sessions (create_session, get_session, list_sessions),
// simulation (level_state, tick, push, brake, release, move, overlap,
// describe_obstacle, reset_level, score_history) and configs (list_configs,
// game_instructions).
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
// The root command also mounts the same MCP server on /mcp for HTTP transport.
package mcp
