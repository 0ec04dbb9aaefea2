// Package segment turns a stream of per-block speech decisions into
// utterances. The Machine accumulates raw audio while the speaker is
// talking and ends the utterance on a silence timeout or a hard length
// limit. It performs no I/O; callers act on the returned Decision.
package segment
