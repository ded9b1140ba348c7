// Package instance implements the session registry and lifecycle state machine.
//
// The Registry is the single owner of all mutable session state: a mutex-guarded
// map of instance id to record. Each instance owns exactly one automation client;
// a per-instance goroutine consumes the client's event stream and applies
// transitions in emission order. Destroy is the only path that removes a record,
// and late events for a removed record are discarded.
package instance
