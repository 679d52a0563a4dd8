// Package runs keeps the registry of transcription runs started through the API.
// Each upload gets its own pipeline run with an independent lifecycle; finished
// runs are kept for a retention period so clients can poll the result, then
// removed by a background cleanup routine.
package runs
