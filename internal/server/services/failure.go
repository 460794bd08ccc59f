package services

import (
	"errors"
	"fmt"
)

// Reason tags an expected token outcome that is not a success.
type Reason string

const (
	ReasonInsertNotOK     Reason = "insert not ok"
	ReasonNotInserted     Reason = "not inserted"
	ReasonNotAccessToken  Reason = "not an access token"
	ReasonNotRefreshToken Reason = "not a refresh token"
	ReasonInvalidToken    Reason = "invalid token"
	ReasonDeleteNotOK     Reason = "find and delete not ok"
	ReasonNotFound        Reason = "not found"
	ReasonNotDeleted      Reason = "not deleted"
)

// Failure is a tagged token outcome. JTI is set when a refresh token record
// was involved. Err is the underlying cause, if any.
type Failure struct {
	Reason Reason
	JTI    string
	Err    error
}

func (f *Failure) Error() string {
	msg := string(f.Reason)
	if f.JTI != "" {
		msg = fmt.Sprintf("%s (jti %s)", msg, f.JTI)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// ReasonOf returns the Failure reason carried by err, or "".
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}
