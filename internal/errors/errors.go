package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrUpstreamServiceFailed = errors.New("upstream service failed")
	ErrNotFound              = errors.New("not found")
	ErrRateLimited           = errors.New("rate limited")
)
