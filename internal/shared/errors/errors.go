package errors

import "errors"

// Domain errors
var (
	// Watch-list errors
	ErrInvalidDomain   = errors.New("invalid domain name")
	ErrInvalidInterval = errors.New("check interval must be at least one minute")
	ErrInvalidOwnerKey = errors.New("invalid owner key")
	ErrOwnerNotFound   = errors.New("owner not found")
	ErrDomainNotFound  = errors.New("domain not watched")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
