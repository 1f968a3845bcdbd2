// Package scheduler triggers jobs on cron specs, fixed intervals and daily
// wall-clock times in one configured timezone.
//
// Cron specs accept an optional leading seconds field, so announcement
// times like 06:01:30 map to "30 1 6 * * *". A job that is still running
// when its next trigger fires is skipped for that trigger.
package scheduler
