// Package transport routes outbound gateway messages to in-process
// receivers keyed by domain id and address.
package transport
