// Package mcp exposes the medchain session and batch registry as MCP
// (Model Context Protocol) tools.
//
// # Server Usage
//
//	server := mcp.NewServer(manager, gateway, log)
//
//	// Serve over stdio
//	err := server.ServeStdio(ctx)
//
//	// Or mount the SSE handler
//	mux.Handle("/sse", server.SSEHandler())
//	mux.Handle("/messages", server.SSEHandler())
//
// Every tool answers with the user-facing outcome message as its first text
// item. Successful calls append the JSON result as a second text item and as
// structured content. Failed calls set IsError and carry the error code.
package mcp
