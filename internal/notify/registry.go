package notify

import "sync"

// TypeDef describes one registered notification type.
type TypeDef struct {
	Key string
	// DailyCap is the maximum number of notifications persisted per
	// recipient/type/dedup-key within one UTC calendar day. Zero means
	// uncapped.
	DailyCap int
}

// Registry is the table of notification types callers populate at startup.
// Sends for unregistered types are rejected with ErrUnknownType.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeDef
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeDef)}
}

// Register adds or replaces a type definition.
func (r *Registry) Register(def TypeDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Key] = def
}

// Lookup returns the definition for key, if registered.
func (r *Registry) Lookup(key string) (TypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[key]
	return def, ok
}

// Keys returns all registered type keys. Used to seed per-type preference
// toggles for new recipients.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}
	return keys
}

// Notification type keys used by the business callers.
const (
	TypeTaskAssigned      = "task_assigned"
	TypeTaskDeadline      = "task_deadline"
	TypeTaskInactive      = "task_inactive"
	TypeStockLow          = "stock_low"
	TypeContractExceeded  = "contract_exceeded"
	TypeAttendanceMissing = "attendance_missing"
	TypeDailySummary      = "daily_summary"
	TypeReminder          = "reminder"
	TypeAnnouncement      = "announcement"
)

// DefaultRegistry registers the built-in types. Threshold-style alerts get a
// tight daily cap; interactive ones stay uncapped.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeDef{Key: TypeTaskAssigned})
	r.Register(TypeDef{Key: TypeTaskDeadline, DailyCap: 2})
	r.Register(TypeDef{Key: TypeTaskInactive, DailyCap: 1})
	r.Register(TypeDef{Key: TypeStockLow, DailyCap: 2})
	r.Register(TypeDef{Key: TypeContractExceeded, DailyCap: 1})
	r.Register(TypeDef{Key: TypeAttendanceMissing, DailyCap: 1})
	r.Register(TypeDef{Key: TypeDailySummary, DailyCap: 1})
	r.Register(TypeDef{Key: TypeReminder})
	r.Register(TypeDef{Key: TypeAnnouncement})
	return r
}
