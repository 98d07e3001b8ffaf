// Package poto turns plain Go structs into remote HTTP endpoints with
// type-preserving serialization, streaming responses, per-principal
// sessions, and JWT-based visitor authentication.
//
// The subpackages each cover one concern and compose freely:
//
//   - core/codec: a JSON envelope that round-trips dates, maps, sets,
//     binary buffers, special numbers, errors, and shared references.
//   - core/dispatcher: reflection-based routing from method names to HTTP
//     routes, with three response framings (JSON value, server-sent
//     events, raw byte stream).
//   - core/auth: principals, bearer tokens, and anonymous visitor login.
//   - core/session: per-principal session records over memory, sealed
//     cookie, or Redis backends.
//   - core/handler: the request carrier interface and middleware types.
//   - core/server: a graceful HTTP server tuned for streaming.
//
// This package wires them together from environment configuration:
//
//	cfg, err := poto.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	app, err := poto.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Register(&Counter{}, &Chat{sessions: app.Sessions}); err != nil {
//		log.Fatal(err)
//	}
//
//	server.Run(ctx, ":8080", app)
//
// Handlers opt methods onto the wire with a trailing underscore; see
// core/dispatcher for the routing rules.
package poto
