// Package redis implements the cross-instance broadcast bus over Redis
// Pub/Sub.
//
// One pattern subscription (notify:*) covers every recipient topic; the
// broker connection is externally provisioned and this package never
// administers it. A Bus constructed without a client reports itself disabled
// and turns every operation into a no-op.
package redis
