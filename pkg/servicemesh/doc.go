/*
Package servicemesh provides service mesh components used by the registry's
own outbound HTTP clients.

Subpackages:

  - circuitbreaker: Circuit breaker pattern implementation, used by
    pkg/client/rest to guard outbound calls.

Service discovery and registration itself is not a servicemesh subpackage
here: it is the registry's own domain, implemented in internal/registry.
*/
package servicemesh
