// Package protocol implements the compact datagram framing used by the UDP
// audio source. Every frame carries an 8-byte big-endian header followed by
// either a hello payload announcing a device or an audio payload with a
// sequence number and little-endian PCM16 samples.
package protocol
