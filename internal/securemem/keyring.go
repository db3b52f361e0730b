package securemem

import (
	"sort"
	"sync"
)

// Keyring maps names (usually environment variable names) to secrets.
type Keyring struct {
	mu    sync.RWMutex
	items map[string]*String
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{items: make(map[string]*String)}
}

// Set stores value under name, wiping any previous value. Empty values
// remove the entry.
func (k *Keyring) Set(name, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.items[name]; ok {
		existing.Destroy()
		delete(k.items, name)
	}
	if value != "" {
		k.items[name] = NewString(value)
	}
}

// Get returns the secret stored under name, or nil.
func (k *Keyring) Get(name string) *String {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.items[name]
}

// Has reports whether name holds a non-empty secret.
func (k *Keyring) Has(name string) bool {
	return !k.Get(name).IsEmpty()
}

// Names lists the stored names in sorted order.
func (k *Keyring) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.items))
	for name := range k.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear wipes every secret.
func (k *Keyring) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for name, s := range k.items {
		s.Destroy()
		delete(k.items, name)
	}
}
