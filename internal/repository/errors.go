// Package repository contains data access logic separated from HTTP
// handlers. Sentinel errors defined here let handlers map storage failures
// onto HTTP status codes with errors.Is instead of string matching.
package repository

import "errors"

// ErrAppNotFound is returned when an application id does not resolve.
var ErrAppNotFound = errors.New("application not found")

// ErrAppNameExists is returned when creating or renaming an application
// would violate the registry-wide name uniqueness invariant.
var ErrAppNameExists = errors.New("application name already exists")

// ErrPhaseNotFound is returned when no application contains a phase with
// the given id.
var ErrPhaseNotFound = errors.New("phase not found")

// ErrPhaseNameExists is returned when a phase name collides with a sibling
// inside the same application.
var ErrPhaseNameExists = errors.New("phase name already exists in this application")

// ErrServiceNotFound is returned when a connected service id does not
// resolve.
var ErrServiceNotFound = errors.New("connected service not found")

// ErrServiceNameExists is returned when a service name collides with
// another service connected to the same application.
var ErrServiceNameExists = errors.New("service name already exists for this application")
