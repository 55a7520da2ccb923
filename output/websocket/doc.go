// Package websocket streams graph updates to browser and tool clients over WebSocket.
//
// # Overview
//
// Output is a pubsub.Subscriber. Register it on the Publisher and every
// update is broadcast to all connected clients as a JSON envelope:
//
//	{"type":"update","id":"<uuid>","timestamp":1718000000000,"payload":{"kind":"add","triples":[...]}}
//
// With WithSnapshot, a client first receives one "snapshot" envelope whose
// payload is the materialized graph as an N-Triples string, so late joiners
// start from the current state.
//
// # Quick Start
//
//	out, err := websocket.NewOutput(websocket.DefaultConfig(),
//	    websocket.WithSnapshot(manager.Export),
//	    websocket.WithMetrics(registry))
//	if err != nil {
//	    return err
//	}
//	publisher.Subscribe("websocket", out)
//	go out.Start(ctx) // blocks until ctx is done or Stop is called
//
// Handler exposes the endpoint for mounting on an existing server or httptest.
//
// # Client Management
//
// Each client gets a read goroutine that processes control frames and a
// write mutex, since gorilla/websocket allows a single concurrent writer.
// Broadcasts write to clients concurrently and wait for all of them; a
// failed write disconnects that client and is never reported back to the
// publisher, so one slow browser cannot fail a graph mutation. A
// keepalive ping every PingInterval drops clients that stopped answering.
//
// # Metrics
//
// With WithMetrics, the output exports under livegraph_websocket_*:
// messages_sent_total{type}, bytes_sent_total, clients_connected,
// client_connections_total, client_disconnections_total{disconnect_reason},
// broadcast_duration_seconds and errors_total{error_type}.
package websocket
