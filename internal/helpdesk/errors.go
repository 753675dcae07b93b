package helpdesk

import "errors"

var (
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInitialPasswordRequired is returned for the first admin login, before a
	// password has ever been set.
	ErrInitialPasswordRequired = errors.New("initial password required")

	// ErrInitialPasswordAlreadySet is returned when the initial password was set before.
	ErrInitialPasswordAlreadySet = errors.New("initial password already set")

	// ErrPasswordTooShort is returned when a new password is under MinPasswordLength.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrNotAuthorized is returned when the principal may not perform an operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidBackupDir is returned when a backup directory fails validation.
	ErrInvalidBackupDir = errors.New("invalid backup directory")

	// ErrInvalidPeriod is returned for an unknown statistics period.
	ErrInvalidPeriod = errors.New("invalid statistics period")
)
