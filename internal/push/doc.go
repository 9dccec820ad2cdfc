// Package push delivers notifications through the Apple Push Notification
// service.
//
// Provider authentication uses a short-lived ES256 token signed with the
// team's .p8 key. The token is cached and re-signed before the provider's
// one-hour expiry. Missing or invalid key material leaves the dispatcher
// unconfigured for the process lifetime: every send fails fast with
// OutcomeNotConfigured and nothing is sent over the network.
package push
