package paging

import "errors"

var (
	ErrPagingDisabled = errors.New("operator paging is disabled")
	ErrCooldownActive = errors.New("paging cooldown active")
	ErrMissingConfig  = errors.New("paging credentials not configured")
)
