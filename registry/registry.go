// Package registry holds the gateway's service table: which logical service ids exist and
// which network endpoints (host:port) serve them.
//
// The in-memory ServiceRegistry is the only state the gateway shares between connection
// goroutines. Every operation takes the same mutex, so registrations, removals and lookups
// are linearizable, and every read hands back a private copy.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoRoute is returned by helpers that need an endpoint when the id is unknown or has none.
var ErrNoRoute = errors.New("registry: no route")

// MicroService is one registered backend service.
type MicroService struct {
	ID        string
	Name      string              // Display name, informational only
	Endpoints map[string]struct{} // Set of host:port addresses
}

// EndpointList returns the endpoint set as a sorted slice.
func (m MicroService) EndpointList() []string {
	list := make([]string, 0, len(m.Endpoints))
	for ep := range m.Endpoints {
		list = append(list, ep)
	}
	sort.Strings(list)
	return list
}

func (m MicroService) clone() MicroService {
	eps := make(map[string]struct{}, len(m.Endpoints))
	for ep := range m.Endpoints {
		eps[ep] = struct{}{}
	}
	return MicroService{ID: m.ID, Name: m.Name, Endpoints: eps}
}

// Resolver picks an endpoint for a routing key.
type Resolver interface {
	Resolve(id string) (string, bool)
}

// Lister exposes read-only snapshots of the registry.
type Lister interface {
	Get(id string) (MicroService, bool)
	GetAll() map[string]MicroService
}

// Registry is the full contract of a service table.
type Registry interface {
	Resolver
	Lister
	Register(id, name string, endpoints []string)
	Deregister(id string)
	AddEndpoint(id, endpoint string)
}

// Lookup is Resolve with an error: it wraps ErrNoRoute when id has no endpoint.
func Lookup(r Resolver, id string) (string, error) {
	ep, ok := r.Resolve(id)
	if !ok {
		return "", fmt.Errorf("%w for %q", ErrNoRoute, id)
	}
	return ep, nil
}
