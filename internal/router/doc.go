// Package router decodes MESSAGE frames into actions and fans them out to
// sinks registered per topic category.
//
// Sinks run on the connection's pump goroutine. Slow consumers should
// register a BufferedSink and drain it from their own goroutine.
package router
