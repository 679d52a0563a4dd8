// Package pipeline drives one transcription run per uploaded file: it probes
// the recording, plans chunks, decodes, slices and encodes them, submits them
// to the transcription backend in order and assembles the transcript.
//
// A Pipeline holds no per-run state, so independent uploads may run
// concurrently on the same instance.
package pipeline
