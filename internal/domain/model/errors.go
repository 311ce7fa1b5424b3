package model

import "errors"

// Validation errors. The store is never touched when one of these is returned.
var (
	ErrInvalidDomain     = errors.New("invalid domain name")
	ErrInvalidSelector   = errors.New("invalid CSS selector")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrDuplicateDomain   = errors.New("domain already exists")
)

// Lookup errors.
var (
	ErrUnknownDomain   = errors.New("domain not configured")
	ErrIndexOutOfRange = errors.New("credential index out of range")
)

// ErrPersistence wraps a failed write to the record store.
var ErrPersistence = errors.New("persistence failure")

// Fill errors.
var (
	ErrNoActiveTab      = errors.New("no active tab")
	ErrDomainMismatch   = errors.New("active tab is on another domain")
	ErrMessaging        = errors.New("messaging failure")
	ErrSenderValidation = errors.New("message sender is not this runtime")
	ErrFillRejected     = errors.New("page rejected fill")
)
