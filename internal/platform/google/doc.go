// Package google adapts Google APIs used by the service: the Calendar API for
// creating events from extracted screenshots and the OAuth2 userinfo endpoint
// for resolving a bearer access token to a stable user identity.
//
// Both adapters act on behalf of the end user. The caller passes the user's
// access token on every call; nothing is cached or refreshed here.
package google
