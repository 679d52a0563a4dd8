// Package transcription implements clients for the remote speech-to-text API.
// It sends one audio file per request as multipart form data and maps
// non-success responses to typed request errors. Requests are never retried.
package transcription
