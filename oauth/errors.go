package oauth

import "errors"

var (
	// ErrDuplicateProvider is an exported constant or variable used by the verification engine.
	ErrDuplicateProvider = errors.New("provider already registered")
	// ErrUnknownProvider is an exported constant or variable used by the verification engine.
	ErrUnknownProvider = errors.New("provider not registered")
	// ErrRefreshNotSupported is an exported constant or variable used by the verification engine.
	ErrRefreshNotSupported = errors.New("provider does not support token refresh")
	// ErrExchangeFailed is an exported constant or variable used by the verification engine.
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	// ErrProfileFetchFailed is an exported constant or variable used by the verification engine.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
)
