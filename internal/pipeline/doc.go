// Package pipeline orchestrates screenshot analysis requests.
//
// The asynchronous path admits a request against the daily quota, records a
// processing job, and hands the analysis to the background task runner. The
// caller receives the job ID immediately. When the analysis finishes the job
// is completed or failed and a job-finished event is emitted; the PushNotifier
// handler turns that event into a push notification for the user's device.
//
// The synchronous path applies the same bounds and quota and returns the
// analyzer's result directly.
package pipeline
