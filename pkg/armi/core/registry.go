package core

import (
	"sync"

	"github.com/jabolina/armi/pkg/armi/types"
)

// ServiceRegistry is the map of service name to descriptor: mutation and
// lookup under its own mutex, invocation running outside it so a long
// method call never blocks registration.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]*types.ServiceDescriptor
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]*types.ServiceDescriptor)}
}

// Register installs descriptor under name. Re-registration replaces; a
// nil descriptor unregisters.
func (r *ServiceRegistry) Register(name string, descriptor *types.ServiceDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if descriptor == nil {
		delete(r.services, name)
		return
	}
	r.services[name] = descriptor
}

// Clear drops every registered service, used on hub shutdown.
func (r *ServiceRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = make(map[string]*types.ServiceDescriptor)
}

// Resolve looks up a service by name.
func (r *ServiceRegistry) Resolve(name string) (*types.ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.services[name]
	return d, ok
}
