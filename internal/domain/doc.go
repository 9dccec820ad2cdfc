// Package domain contains the core business entities of the capture service:
// events extracted from screenshots, asynchronous analysis jobs and push
// device registrations. It is independent of any specific infrastructure or
// delivery mechanism.
package domain
