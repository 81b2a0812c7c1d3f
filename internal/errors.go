package internal

import "errors"

var (
	ENOTSUP      = errors.New("not supported")
	ErrNoFiles   = errors.New("no files")
	ErrNoExtents = errors.New("all empty or still-delalloced files")
)
