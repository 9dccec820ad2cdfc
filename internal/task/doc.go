// Package task runs background work on a bounded in-memory queue served by a
// fixed pool of workers. Screenshot analysis jobs run here so they never
// block HTTP request handling. Stopping the runner closes the queue and
// waits for every accepted task to finish; nothing accepted is cancelled.
package task
