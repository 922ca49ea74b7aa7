package recorder

// Package recorder documents the contract of the event-recorder hook module.
//
// Inputs: every emitted event (pattern "*"), observed at priority 1000 so
// policy hooks run first and the recorder sees the final payload.
//
// Outputs: the `events.tail` capability, returning the most recent events
// (bounded by the `capacity` config key, default 100). Consumers poll it;
// the recorder never pushes.
//
// The recorder holds no policy: it always returns continue and never mutates
// event data.
