package pool

import "errors"

var (
	ErrFailedToParseConfig = errors.New("pool: failed to parse connection config")
	ErrPoolCreation        = errors.New("pool: failed to create connection pool")
	ErrAcquireTimeout      = errors.New("pool: no connection became available before the acquire timeout")
	ErrNotConnected        = errors.New("pool: backend is not connected")
	ErrInvalidConnection   = errors.New("pool: connection does not belong to this backend")
)
