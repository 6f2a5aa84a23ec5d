// Package transcribe turns audio files into text through one of three
// providers selected by configuration: Deepgram's prerecorded API, OpenAI's
// Whisper API, or a local WhisperX run through uvx.
//
// Remote providers map HTTP failures onto the services markers so 5xx and
// rate-limit responses are retried by the caller while bad credentials fail
// fast. Anything else that prevents a transcript is ErrTranscription.
package transcribe
