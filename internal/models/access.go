package models

// AccessState is the outcome of evaluating a user's access to a module
type AccessState string

const (
	AccessVisible   AccessState = "VISIBLE"
	AccessLocked    AccessState = "LOCKED"
	AccessForbidden AccessState = "FORBIDDEN"
)
