package registry

import "sync"

// ServiceRegistry is a mutex-guarded id → MicroService table.
// The zero value is not usable; call NewServiceRegistry.
type ServiceRegistry struct {
	mu       sync.Mutex
	services map[string]*MicroService
}

var _ Registry = (*ServiceRegistry)(nil)

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]*MicroService)}
}

// Register inserts the service if id is absent, otherwise merges endpoints into the existing
// entry. The name of an existing entry is kept.
func (r *ServiceRegistry) Register(id, name string, endpoints []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[id]
	if !ok {
		svc = &MicroService{ID: id, Name: name, Endpoints: make(map[string]struct{}, len(endpoints))}
		r.services[id] = svc
	}
	for _, ep := range endpoints {
		svc.Endpoints[ep] = struct{}{}
	}
}

// Deregister removes id. Unknown ids are ignored.
func (r *ServiceRegistry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, id)
}

// AddEndpoint adds endpoint to an already registered service.
// It does not create the service when id is unknown.
func (r *ServiceRegistry) AddEndpoint(id, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc, ok := r.services[id]; ok {
		svc.Endpoints[endpoint] = struct{}{}
	}
}

// Get returns a copy of the service registered under id.
func (r *ServiceRegistry) Get(id string) (MicroService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[id]
	if !ok {
		return MicroService{}, false
	}
	return svc.clone(), true
}

// GetAll returns a copy of the whole table.
func (r *ServiceRegistry) GetAll() map[string]MicroService {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make(map[string]MicroService, len(r.services))
	for id, svc := range r.services {
		all[id] = svc.clone()
	}
	return all
}

// Resolve returns one endpoint of id. Which one is unspecified when there are several.
func (r *ServiceRegistry) Resolve(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[id]
	if !ok {
		return "", false
	}
	for ep := range svc.Endpoints {
		return ep, true
	}
	return "", false
}

// Len reports the number of registered services.
func (r *ServiceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.services)
}
