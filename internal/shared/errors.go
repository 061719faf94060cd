package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the principal may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNoAgents indicates a roster load returned zero active agents. Treated
	// as a data-source misconfiguration, not a normal empty state.
	ErrNoAgents = errors.New("no active agents in data source")
	// ErrAlreadyRegistered indicates an account already exists for the email.
	ErrAlreadyRegistered = errors.New("account already registered")
)
