// Package pipeline wires the real-time chain together. A source callback
// copies each block into the bounded queue without blocking; one consumer
// goroutine runs every block through enhancement, voice activity
// detection and the segmentation machine, then transcribes, filters and
// dispatches each finished utterance before taking the next block.
package pipeline
