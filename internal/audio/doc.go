// Package audio holds the sample-level building blocks of the capture path.
// It defines fixed-duration audio blocks, the bounded ingestion queue that
// decouples the capture callback from the processing loop, block framing for
// byte-oriented sources, and PCM-16 WAV encoding for transcription uploads.
package audio
