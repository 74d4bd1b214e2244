package images

import "errors"

var (
	ErrMissingBaseURL     = errors.New("storage base URL not configured")
	ErrFileTooLarge       = errors.New("image too large")
	ErrNotAnImage         = errors.New("file is not an image")
	ErrStorageUnavailable = errors.New("image storage unavailable")
)
