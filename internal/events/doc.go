// Package events publishes in-process notifications about finished jobs.
// Producers emit without knowing who listens; the push notifier is the main
// subscriber.
package events
