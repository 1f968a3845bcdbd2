// Package notifier is the outbound pipeline for statuses and follow changes.
//
// Submit checks the per-kind rate limit and the dedup window, then queues the
// job. Workers deliver it through the social transport with jittered retry
// backoff, record the outcome in the storage audit and publish post.* events
// on the bus.
package notifier
