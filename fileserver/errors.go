package fileserver

import "errors"

// Transfer failures. Errors returned by this package wrap one of these, so callers
// can classify them with errors.Is.
var (
	ErrConnection        = errors.New("connection failed")
	ErrProtocol          = errors.New("protocol error")
	ErrPathEscape        = errors.New("path escapes served root")
	ErrNotFound          = errors.New("file not found")
	ErrIO                = errors.New("i/o error")
	ErrTruncatedTransfer = errors.New("incorrect number of bytes transferred")
	ErrDestinationExists = errors.New("save path already exists")
	ErrPathTooLong       = errors.New("path too long")
)
