package models

import (
	"maps"
	"slices"
	"sync"
)

// EventType names a Vault mutation.
type EventType int

const (
	// EventLoaded is emitted when the whole vault content is replaced.
	EventLoaded EventType = iota
	// EventAdded is emitted after an item is appended.
	EventAdded
	// EventReplaced is emitted after an item is replaced by its edited version.
	EventReplaced
	// EventRemoved is emitted after an item is removed.
	EventRemoved
	// EventHistoryAppended is emitted after a generator value is recorded.
	EventHistoryAppended
)

// Event describes a Vault mutation to observers.
type Event struct {
	Type EventType
	Kind Kind
	Name string
}

// Vault is the in-memory aggregate of a user's items and generator history.
// Reads return copies, so observers never see partially applied writes.
type Vault struct {
	mu        sync.RWMutex
	name      string
	metadata  map[string]string
	items     map[Kind][]Item
	history   []string
	observers map[int]func(Event)
	nextObs   int
}

// NewVault returns an empty vault.
func NewVault(name string, metadata map[string]string) *Vault {
	v := &Vault{
		name:      name,
		metadata:  maps.Clone(metadata),
		items:     make(map[Kind][]Item, len(Kinds)),
		observers: make(map[int]func(Event)),
	}
	if v.metadata == nil {
		v.metadata = map[string]string{}
	}
	return v
}

// Name returns the vault name.
func (v *Vault) Name() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.name
}

// Metadata returns a copy of the vault-level metadata.
func (v *Vault) Metadata() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.metadata)
}

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it.
func (v *Vault) Subscribe(fn func(Event)) (cancel func()) {
	v.mu.Lock()
	id := v.nextObs
	v.nextObs++
	v.observers[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.observers, id)
		v.mu.Unlock()
	}
}

// notify must be called without holding mu.
func (v *Vault) notify(ev Event) {
	v.mu.RLock()
	fns := make([]func(Event), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Restore replaces the content of v with the content of src, keeping the
// observers of v.
func (v *Vault) Restore(src *Vault) {
	src.mu.RLock()
	name := src.name
	metadata := maps.Clone(src.metadata)
	items := make(map[Kind][]Item, len(src.items))
	for k, list := range src.items {
		items[k] = cloneItems(list)
	}
	history := slices.Clone(src.history)
	src.mu.RUnlock()

	v.mu.Lock()
	v.name, v.metadata, v.items, v.history = name, metadata, items, history
	v.mu.Unlock()

	v.notify(Event{Type: EventLoaded, Name: name})
}

// Items returns copies of the items of the given kind, in vault order.
func (v *Vault) Items(kind Kind) []Item {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneItems(v.items[kind])
}

// Passwords returns copies of the password items.
func (v *Vault) Passwords() []*PasswordItem {
	items := v.Items(KindPassword)
	out := make([]*PasswordItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*PasswordItem))
	}
	return out
}

// Notes returns copies of the note items.
func (v *Vault) Notes() []*NoteItem {
	items := v.Items(KindNote)
	out := make([]*NoteItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*NoteItem))
	}
	return out
}

// Len returns the number of items of the given kind.
func (v *Vault) Len(kind Kind) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items[kind])
}

// Find returns a copy of the item of the given kind with the given name.
func (v *Vault) Find(kind Kind, name string) (Item, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := v.indexByName(kind, name); i >= 0 {
		return v.items[kind][i].Clone(), true
	}
	return nil, false
}

// NameTaken reports whether an item of kind other than the one identified
// by exceptID already uses name. Comparison is case-sensitive.
func (v *Vault) NameTaken(kind Kind, name, exceptID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, it := range v.items[kind] {
		h := it.Header()
		if h.Name == name && (exceptID == "" || h.ID != exceptID) {
			return true
		}
	}
	return false
}

// Add appends item to the sequence of its kind.
func (v *Vault) Add(item Item) {
	v.mu.Lock()
	v.items[item.Kind()] = append(v.items[item.Kind()], item)
	v.mu.Unlock()

	v.notify(Event{Type: EventAdded, Kind: item.Kind(), Name: item.Header().Name})
}

// Replace swaps the item named originalName for item, keeping its position.
// It reports whether the original was found.
func (v *Vault) Replace(originalName string, item Item) bool {
	kind := item.Kind()

	v.mu.Lock()
	i := v.indexByName(kind, originalName)
	if i >= 0 {
		v.items[kind][i] = item
	}
	v.mu.Unlock()

	if i < 0 {
		return false
	}
	v.notify(Event{Type: EventReplaced, Kind: kind, Name: item.Header().Name})
	return true
}

// Remove deletes item by identity (its ID, or its name when it has none).
func (v *Vault) Remove(item Item) bool {
	kind := item.Kind()
	h := item.Header()

	v.mu.Lock()
	var i int
	if h.ID != "" {
		i = slices.IndexFunc(v.items[kind], func(it Item) bool { return it.Header().ID == h.ID })
	} else {
		i = v.indexByName(kind, h.Name)
	}
	if i >= 0 {
		v.items[kind] = slices.Delete(v.items[kind], i, i+1)
	}
	v.mu.Unlock()

	if i < 0 {
		return false
	}
	v.notify(Event{Type: EventRemoved, Kind: kind, Name: h.Name})
	return true
}

// AppendHistory records a generator value and returns the full history.
func (v *Vault) AppendHistory(value string) []string {
	v.mu.Lock()
	v.history = append(v.history, value)
	out := slices.Clone(v.history)
	v.mu.Unlock()

	v.notify(Event{Type: EventHistoryAppended})
	return out
}

// History returns a copy of the generator history, oldest first.
func (v *Vault) History() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.history)
}

func (v *Vault) indexByName(kind Kind, name string) int {
	return slices.IndexFunc(v.items[kind], func(it Item) bool { return it.Header().Name == name })
}

func cloneItems(list []Item) []Item {
	out := make([]Item, len(list))
	for i, it := range list {
		out[i] = it.Clone()
	}
	return out
}
