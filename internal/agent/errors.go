package agent

import "errors"

// ErrCommandTimeout is returned when an app instance does not answer a
// request/reply command in time.
var ErrCommandTimeout = errors.New("agent: timed out waiting for app response")

// ErrNavigateRejected is returned when an app instance refuses a direct
// navigation. The click handler recovers by falling back to a navigate
// instruction message.
var ErrNavigateRejected = errors.New("agent: navigation rejected by app")
