package util

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrQuizNotFound          = errors.New("quiz not found")
	ErrQuizNotPublished      = errors.New("quiz not published or not accessible")
	ErrQuizNotAvailable      = errors.New("quiz not available at this time")
	ErrQuizLocked            = errors.New("quiz has attempts in progress and cannot be modified")
	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrAttemptLimitExceeded  = errors.New("attempt limit exceeded")
	ErrAttemptNotInProgress  = errors.New("attempt is not in progress")
	ErrAttemptExpiredUnsaved = errors.New("time expired, attempt could not be saved")
	ErrQuestionNotFound      = errors.New("question not found in quiz")
	ErrResultNotAvailable    = errors.New("results are not available for review")
)
