// Package broadcast implements the realtime notification core: a per-process
// connection registry, local delivery to every device a recipient has open,
// and an optional pub/sub bus for fan-out across instances.
//
// All delivery is best effort. Nothing in this package returns an error to
// business callers; failures are logged and counted so operators can observe
// drop rates, but the triggering operation is never affected.
package broadcast
