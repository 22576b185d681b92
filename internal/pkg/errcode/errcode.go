package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrVersionConflict
	ErrAlreadyExists
	ErrTooMany
	ErrInternal
)
