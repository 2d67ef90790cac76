package contentqueue

import "errors"

// Repository errors.
var (
	ErrItemNotFound = errors.New("queue item not found")
	ErrSlugExists   = errors.New("slug already exists")
	ErrSlotTaken    = errors.New("publish slot already taken")
)

// Validation errors.
var (
	ErrInvalidSlug         = errors.New("invalid slug")
	ErrTitleRequired       = errors.New("title is required")
	ErrInvalidStatus       = errors.New("invalid queue status")
	ErrInvalidSocialStatus = errors.New("invalid social status")
	ErrInvalidContentType  = errors.New("invalid content type")
	ErrInvalidSourcePath   = errors.New("source path must be relative to the content root")
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	ErrItemTerminal        = errors.New("item is already published or failed")
)
