package models

import "errors"

// ErrConfig marks errors caused by invalid or missing configuration. They
// abort a run before any network call is made.
var ErrConfig = errors.New("configuration error")
