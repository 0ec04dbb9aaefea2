// Package transcription sends finished utterances to a speech-to-text
// model and vets the returned segments. The Client speaks the
// Whisper-compatible multipart API (verbose_json responses carry
// per-segment avg_logprob and no_speech_prob), retries transient failures
// with exponential backoff, and keeps request statistics. The Filter drops
// segments the model itself is unsure about.
package transcription
