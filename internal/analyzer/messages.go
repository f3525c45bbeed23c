package analyzer

import (
	"errors"

	gh "ghanalyzer/internal/github"
)

const (
	MsgNotFound = "GitHub user not found. Please check the username and try again."
	MsgGeneric  = "An error occurred while fetching data. Please try again later."
)

// UserMessage maps a run error to the text shown to the user. Only a missing
// user (at the profile or repository stage) gets its own message.
func UserMessage(err error) string {
	if IsNotFound(err) {
		return MsgNotFound
	}
	return MsgGeneric
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidUsername) {
		return true
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		return false
	}
	switch runErr.Stage {
	case StageProfile, StageRepos:
		return errors.Is(runErr.Err, gh.ErrNotFound)
	}
	return false
}
