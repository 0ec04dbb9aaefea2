// Package vad decides whether recent audio contains speech. A Window keeps
// the most recent denoised samples, and a Detector reports the speech
// intervals it finds in that window. The energy detector shipped here turns
// frame RMS into a speech probability and merges speech frames into
// intervals the way neural detectors report timestamps.
package vad
