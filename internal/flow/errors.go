package flow

import "errors"

// Submission failures. The session is left intact after each so the user
// can retry.
var (
	ErrUploadFailed = errors.New("flow: photo upload failed")
	ErrCreateFailed = errors.New("flow: feedback submission failed")
)

// Caller errors.
var (
	ErrNoActiveSurvey      = errors.New("flow: no survey in progress")
	ErrNotReady            = errors.New("flow: survey is not ready to submit")
	ErrUnknownQuestion     = errors.New("flow: unknown question")
	ErrOutOfRange          = errors.New("flow: score out of range")
	ErrOptOutNotAllowed    = errors.New("flow: question cannot be skipped")
	ErrTextTooLong         = errors.New("flow: feedback text too long")
	ErrInvalidSatisfaction = errors.New("flow: invalid satisfaction choice")
	ErrInvalidTarget       = errors.New("flow: invalid target id")
)
