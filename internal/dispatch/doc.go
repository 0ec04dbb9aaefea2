// Package dispatch hands accepted transcripts to the NL->SQL service and
// runs any returned statement through the read-only query gate. It is the
// error boundary of the pipeline: failures are logged, reported and
// recorded, never returned to the caller.
package dispatch
