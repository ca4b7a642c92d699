// SPDX-License-Identifier: MIT
package effects

import (
	"fmt"
	"sort"
)

// registry is the static name-to-constructor mapping. Effects register
// themselves from init; the map is never mutated after program startup so
// lookups need no locking.
var registry = map[string]Constructor{}

// Register adds an effect constructor under name. Panics on a duplicate,
// which is a programming error caught at startup.
func Register(name string, ctor Constructor) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("effects: duplicate registration for %q", name))
	}
	registry[name] = ctor
}

// New constructs the named effect for the given canvas size.
func New(name string, width, height int) (Effect, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown effect %q (available: %v)", name, Names())
	}
	return ctor(width, height), nil
}

// Names returns the registered effect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
