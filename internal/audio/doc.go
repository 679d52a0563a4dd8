// Package audio handles decoding, chunk planning, slicing and WAV encoding of
// uploaded recordings. Long recordings are cut into contiguous, size-bounded
// chunks that are re-encoded as standalone 16-bit PCM WAV files for transcription.
package audio
