package cache

import "errors"

var (
	ErrForeignRun   = errors.New("key belongs to another run")
	ErrTypeMismatch = errors.New("cached value has a different type")
)
