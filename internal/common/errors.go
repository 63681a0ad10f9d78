// Package common defines sentinel errors and constants shared by the
// clusterdeck server packages. Callers should match errors with errors.Is.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// session errors
	ErrInvalidToken    = errors.New("invalid token")
	ErrClusterNotFound = errors.New("cluster not found")

	// secret provisioning
	ErrSecretUnavailable = errors.New("failed to generate and store auth secret")
)
