// Package natstriple feeds triples from NATS into a realtime.Updater.
//
// Messages are JSON objects naming the operation and the triple:
//
//	{"op":"add","triple":{"subject":"urn:drone:1","predicate":"urn:vocab:status","object":{"type":"literal","value":"armed"}}}
//	{"op":"remove","triples":[...]}
//
// "triple" and "triples" may be combined; a message with several triples is
// applied through the Updater's batch entry points when it implements
// BatchUpdater. Malformed messages are counted and logged, never fatal: the
// source keeps consuming.
package natstriple
