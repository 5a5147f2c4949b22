// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import "sync"

// Registry is an ordered collection of Behaviours, safe for concurrent use. The insertion order is the dispatch
// order. Behaviours are compared by identity; thus, they must be comparable, e.g., pointers.
type Registry struct {
	sync.RWMutex

	behaviours []Behaviour
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add a Behaviour at the end.
func (r *Registry) Add(b Behaviour) {
	r.Lock()
	defer r.Unlock()

	r.behaviours = append(r.behaviours, b)
}

// Remove the first occurrence of a Behaviour. False is returned if it is not registered.
func (r *Registry) Remove(b Behaviour) bool {
	r.Lock()
	defer r.Unlock()

	for i, child := range r.behaviours {
		if child == b {
			r.behaviours = append(r.behaviours[:i:i], r.behaviours[i+1:]...)
			return true
		}
	}
	return false
}

// Contains checks if a Behaviour is registered.
func (r *Registry) Contains(b Behaviour) bool {
	r.RLock()
	defer r.RUnlock()

	for _, child := range r.behaviours {
		if child == b {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of all registered Behaviours in their order.
func (r *Registry) Snapshot() []Behaviour {
	r.RLock()
	defer r.RUnlock()

	return append([]Behaviour(nil), r.behaviours...)
}

// Len is the amount of registered Behaviours.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.behaviours)
}

// Clear the Registry and return its former content.
func (r *Registry) Clear() []Behaviour {
	r.Lock()
	defer r.Unlock()

	behaviours := r.behaviours
	r.behaviours = nil
	return behaviours
}
