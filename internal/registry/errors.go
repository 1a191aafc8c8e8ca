package registry

import "github.com/RomainDECOSTER/scoutquest/pkg/errors"

// Sentinel errors for registry operations.
var (
	// ErrServiceNotFound is returned when a service does not exist.
	ErrServiceNotFound = errors.NotFound("service not found", nil)

	// ErrInstanceNotFound is returned when an instance does not exist.
	ErrInstanceNotFound = errors.NotFound("instance not found", nil)

	// ErrInvalidRequest is returned for a malformed registration request.
	ErrInvalidRequest = errors.InvalidArgument("invalid registration request", nil)

	// ErrNoInstances is returned by the load balancer when given an
	// empty candidate list.
	ErrNoInstances = errors.Internal("no instances available", nil)
)

// NoHealthyInstancesError is returned by the HealthyOnly load-balancing
// strategy when a service has zero Up instances. It carries the service
// name so callers can report it without string-parsing the message.
type NoHealthyInstancesError struct {
	ServiceName string
}

func (e *NoHealthyInstancesError) Error() string {
	return "no healthy instances for service " + e.ServiceName
}

// NoHealthyInstances constructs a NoHealthyInstancesError.
func NoHealthyInstances(serviceName string) error {
	return &NoHealthyInstancesError{ServiceName: serviceName}
}
