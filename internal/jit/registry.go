package jit

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ErrUnknownInstance is returned when an instance id is not registered in a domain.
var ErrUnknownInstance = errors.New("unknown instance")

// registry maps objects of each domain to dense, non-zero instance ids.
// Id 0 is reserved for "no instance".
type registry struct {
	mu      sync.RWMutex
	domains map[string]*domainTable
}

type domainTable struct {
	next    uint32
	objects map[uint32]any
	ids     map[any]uint32
}

func newRegistry() *registry {
	return &registry{domains: make(map[string]*domainTable)}
}

func (r *registry) table(domain string) *domainTable {
	t, ok := r.domains[domain]
	if !ok {
		t = &domainTable{
			objects: make(map[uint32]any),
			ids:     make(map[any]uint32),
		}
		r.domains[domain] = t
	}
	return t
}

func (g *graph) instances() *registry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registry
}

// RegisterInstance adds obj to domain and returns its instance id.
// Registering the same object twice returns the existing id.
// obj must be comparable, which in practice means a pointer.
func RegisterInstance(domain string, obj any) (uint32, error) {
	if obj == nil {
		return 0, fmt.Errorf("register %s: nil instance", domain)
	}
	if !reflect.TypeOf(obj).Comparable() {
		return 0, fmt.Errorf("register %s: instance of type %T is not comparable", domain, obj)
	}

	r := current().instances()
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.table(domain)
	if id, ok := t.ids[obj]; ok {
		return id, nil
	}
	t.next++
	t.objects[t.next] = obj
	t.ids[obj] = t.next
	return t.next, nil
}

// UnregisterInstance removes id from domain. Its id is not reused.
func UnregisterInstance(domain string, id uint32) error {
	r := current().instances()
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.domains[domain]
	if !ok {
		return fmt.Errorf("%s/%d: %w", domain, id, ErrUnknownInstance)
	}
	obj, ok := t.objects[id]
	if !ok {
		return fmt.Errorf("%s/%d: %w", domain, id, ErrUnknownInstance)
	}
	delete(t.objects, id)
	delete(t.ids, obj)
	return nil
}

// Instance returns the object registered under id in domain.
func Instance(domain string, id uint32) (any, error) {
	r := current().instances()
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.domains[domain]; ok {
		if obj, ok := t.objects[id]; ok {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%s/%d: %w", domain, id, ErrUnknownInstance)
}

// LookupInstance returns the id of obj in domain.
func LookupInstance(domain string, obj any) (uint32, bool) {
	if obj == nil || !reflect.TypeOf(obj).Comparable() {
		return 0, false
	}
	r := current().instances()
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.domains[domain]
	if !ok {
		return 0, false
	}
	id, ok := t.ids[obj]
	return id, ok
}

// Instances returns the registered ids of domain in ascending order.
func Instances(domain string) []uint32 {
	r := current().instances()
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.domains[domain]
	if !ok {
		return nil
	}
	ids := make([]uint32, 0, len(t.objects))
	for id := range t.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
