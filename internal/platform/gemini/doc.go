// Package gemini implements vision.Analyzer with Google's Gemini API.
//
// The analyzer sends the screenshot inline together with an extraction
// prompt rendered from a template, asks for a JSON response, and converts
// the response into domain events. Transient API failures are retried with
// exponential backoff and jitter. Safety blocks and malformed responses are
// permanent and returned immediately.
//
// Individual events that fail validation are dropped and logged rather than
// failing the whole analysis, since one screenshot may hold several events of
// varying quality.
package gemini
