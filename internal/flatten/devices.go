package flatten

import "sync"

// DeviceRecord describes one bridge-defined object. Records are keyed
// by (kind, uid) and re-derived on every poll; a poll supersedes the
// previous record.
type DeviceRecord struct {
	Kind string // lights, groups, sensors, scenes, schedules, rules
	UID  string
	Name string
	// Path is the dotted store key prefix of the device channel.
	Path string
	// Lights holds member light ids for groups and light scenes.
	Lights []string
	// SceneType is GroupScene or LightScene for scene records.
	SceneType string
	// Group is the owning group uid for group scenes.
	Group string
}

// Registry indexes DeviceRecords for reverse routing of store writes.
type Registry struct {
	mu      sync.RWMutex
	records map[string]map[string]*DeviceRecord // kind -> uid -> record
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]map[string]*DeviceRecord)}
}

// Put registers or supersedes a record.
func (r *Registry) Put(rec DeviceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := r.records[rec.Kind]
	if kind == nil {
		kind = make(map[string]*DeviceRecord)
		r.records[rec.Kind] = kind
	}
	kind[rec.UID] = &rec
}

// Get returns a record by kind and uid.
func (r *Registry) Get(kind, uid string) (DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[kind][uid]
	if !ok {
		return DeviceRecord{}, false
	}
	return *rec, true
}

// SetPath updates the store path of an existing record.
func (r *Registry) SetPath(kind, uid, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[kind][uid]; ok {
		rec.Path = path
	}
}
