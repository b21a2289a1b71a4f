package datasource

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported data format")
	ErrUnknownProject    = errors.New("unknown project")
	ErrNotFound          = errors.New("not found")
	ErrEmptyTable        = errors.New("no header row")
)
