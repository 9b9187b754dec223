package bus

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Query keys mirror the read views the dashboard subscribes to: the project
// list and the financial-report projection, both per owner.
const (
	VIEW_PROJECTS = "projects"
	VIEW_REPORTS  = "reports"
)

type QueryKey string

func ProjectsKey(ownerID int) QueryKey {
	return QueryKey(fmt.Sprintf("%s.%d", VIEW_PROJECTS, ownerID))
}

func ReportsKey(ownerID int) QueryKey {
	return QueryKey(fmt.Sprintf("%s.%d", VIEW_REPORTS, ownerID))
}

func (k QueryKey) View() string {
	if i := strings.IndexByte(string(k), '.'); i >= 0 {
		return string(k)[:i]
	}
	return string(k)
}

func (k QueryKey) OwnerID() (int, bool) {
	i := strings.IndexByte(string(k), '.')
	if i < 0 {
		return 0, false
	}
	id, err := strconv.Atoi(string(k)[i+1:])
	if err != nil {
		return 0, false
	}
	return id, true
}

type Subscriber func(key QueryKey)

// Bus is the process-wide invalidation registry. It is created once at boot,
// holds no per-request state, and delivers each invalidation synchronously so
// that a read issued after Invalidate returns observes the fresh projection.
// Subscribers that need async delivery spawn their own goroutines.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	keyed  map[QueryKey]map[int]Subscriber
	global map[int]Subscriber
}

func New() *Bus {
	return &Bus{
		keyed:  make(map[QueryKey]map[int]Subscriber),
		global: make(map[int]Subscriber),
	}
}

// Subscribe registers fn for one query key and returns an unsubscribe func.
func (b *Bus) Subscribe(key QueryKey, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	subs, ok := b.keyed[key]
	if !ok {
		subs = make(map[int]Subscriber)
		b.keyed[key] = subs
	}
	subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.keyed, key)
		}
	}
}

// SubscribeAll registers fn for every key. Used by process-wide listeners
// like the client push notifier.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.global[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.global, id)
	}
}

func (b *Bus) Invalidate(key QueryKey) {
	b.mu.RLock()
	fns := make([]Subscriber, 0, len(b.keyed[key])+len(b.global))
	for _, fn := range b.keyed[key] {
		fns = append(fns, fn)
	}
	for _, fn := range b.global {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(key)
	}
}
