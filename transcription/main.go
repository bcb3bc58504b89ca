// Package transcription defines the speech-to-text boundary: the provider
// contract, payload validation, and the error taxonomy callers branch on.
package transcription

import (
	"context"
	"errors"
	"fmt"
)

// MaxAudioBytes is the largest accepted payload, matching the upstream
// provider limit.
const MaxAudioBytes = 25 * 1024 * 1024

type ErrorKind string

const (
	KindNoAudio         ErrorKind = "no_audio"
	KindTooLarge        ErrorKind = "too_large"
	KindBadFormat       ErrorKind = "bad_format"
	KindUpstreamFailure ErrorKind = "upstream_failure"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription %s: %s", e.Kind, e.Message)
}

// KindOf extracts the error kind, if err came from this boundary.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// Service is the speech-to-text collaborator contract.
type Service interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ValidateAudio rejects empty payloads and payloads over the size limit
// before any network round trip.
func ValidateAudio(audio []byte) error {
	if len(audio) == 0 {
		return &Error{Kind: KindNoAudio, Message: "Empty file provided"}
	}
	if len(audio) > MaxAudioBytes {
		return &Error{Kind: KindTooLarge, Message: "File too large. Maximum size is 25MB."}
	}
	return nil
}
