package errors

import "errors"

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")
var ErrNotFound = errors.New("resource not found")
var ErrConflict = errors.New("resource state conflict")
var ErrValidation = errors.New("validation failed")
var ErrRateLimited = errors.New("too many requests")
