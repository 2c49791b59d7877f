package simplenft

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotFound indicates the upstream reported the resource as missing
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable indicates an upstream call failed or timed out
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrContentRejected indicates a media file has a type outside the allow-list
	ErrContentRejected = errors.New("content type not accepted")

	// ErrCouldNotExtractThumbnail indicates no thumbnail could be produced for a media file
	ErrCouldNotExtractThumbnail = errors.New("could not extract thumbnail")

	// ErrPermanentDrop indicates a message exhausted its redeliveries
	ErrPermanentDrop = errors.New("maximum number of retries reached")

	// ErrInvalidMessage indicates a queue message could not be decoded
	ErrInvalidMessage = errors.New("invalid message")

	// ErrObjectNotFound indicates a blob was not found in storage
	ErrObjectNotFound = errors.New("object not found")
)

// ProcessError represents a failure of one processing step for an NFT
type ProcessError struct {
	Identifier string
	Step       string
	Err        error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("processing step %s failed for nft %s: %v", e.Step, e.Identifier, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// UpstreamError represents a failed call to an external HTTP collaborator
type UpstreamError struct {
	Service    string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request %s failed with status %d: %s", e.Service, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request %s failed: %v", e.Service, e.Path, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes every UpstreamError match ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}
