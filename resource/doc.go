// Package resource provides the execution context shared by index builds and
// searches: memory accounting, a bounded worker pool, query admission and an
// ordered asynchronous stream.
//
// A nil *Context is usable for memory, Parallel and Limit calls and behaves
// as an unlimited context with GOMAXPROCS workers. Stream operations
// (Enqueue, Sync) need a Context created with New.
package resource
