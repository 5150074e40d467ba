package recognizer

import "fmt"

// Recognizer error codes, as reported by the browser speech API.
const (
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeNetwork           = "network"
	CodeAudioCapture      = "audio-capture"
	CodeAborted           = "aborted"
	CodeNoSpeech          = "no-speech"
)

// Messages shown outside of error events.
const (
	MsgUnsupported  = "Error: Speech Recognition is not supported by this browser. Please use Chrome, Edge, or Safari."
	MsgMicrophone   = "Error: Could not access microphone. Please grant permission and try again."
	msgNotAllowed   = "Error: Microphone permission was denied. Please allow access and try again."
	msgNetwork      = "Error: A network error occurred. Please check your connection."
	msgAudioCapture = "Error: No audio was detected. Please check your microphone."
	msgAborted      = "Speech recognition was aborted."
)

// ErrorMessage returns the banner text for code. ok is false for codes that
// must be ignored.
func ErrorMessage(code string) (msg string, ok bool) {
	switch code {
	case CodeNotAllowed, CodeServiceNotAllowed:
		return msgNotAllowed, true
	case CodeNetwork:
		return msgNetwork, true
	case CodeAudioCapture:
		return msgAudioCapture, true
	case CodeAborted:
		return msgAborted, true
	case CodeNoSpeech:
		return "", false
	default:
		return fmt.Sprintf("An unexpected error occurred: %q. Please try again.", code), true
	}
}
