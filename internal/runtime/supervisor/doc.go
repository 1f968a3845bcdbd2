// Package supervisor runs rotabot's long-lived goroutines under one context.
//
// Every task is named, recovered from panics and tracked for /healthz.
// Restartable tasks (streams, pollers, workers) come back with jittered
// exponential backoff.
package supervisor
