package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Status is the lifecycle state of a schema version.
type Status string

const (
	// StatusStaging marks a version being built. Readers ignore it.
	StatusStaging Status = "STAGING"
	// StatusActive marks the version used by readers.
	StatusActive Status = "ACTIVE"
	// StatusDeprecated marks a superseded version.
	StatusDeprecated Status = "DEPRECATED"
)

var (
	// ErrUnknownVersion is returned for versions never registered.
	ErrUnknownVersion = errors.New("unknown sample index schema version")
	// ErrNoActiveVersion is returned when no version has been activated.
	ErrNoActiveVersion = errors.New("no active sample index schema version")
	// ErrVersionExists is returned when registering a version twice.
	ErrVersionExists = errors.New("sample index schema version already registered")
)

type registered struct {
	schema *SampleIndexSchema
	status Status
}

// Registry tracks the schema versions of a study.
type Registry struct {
	versions *xsync.MapOf[int, registered]
	// mu serializes status transitions so only one version is active.
	mu sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{versions: xsync.NewMapOf[int, registered]()}
}

// Register adds a schema in STAGING status.
func (r *Registry) Register(s *SampleIndexSchema) error {
	_, loaded := r.versions.LoadOrStore(s.Version(), registered{schema: s, status: StatusStaging})
	if loaded {
		return fmt.Errorf("%w: %d", ErrVersionExists, s.Version())
	}
	return nil
}

// Get returns a schema and its status.
func (r *Registry) Get(version int) (*SampleIndexSchema, Status, error) {
	e, ok := r.versions.Load(version)
	if !ok {
		return nil, "", fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return e.schema, e.status, nil
}

// Activate makes version the active one. The previously active version
// becomes DEPRECATED.
func (r *Registry) Activate(version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.versions.Load(version)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	r.versions.Range(func(v int, e registered) bool {
		if v != version && e.status == StatusActive {
			e.status = StatusDeprecated
			r.versions.Store(v, e)
		}
		return true
	})
	target.status = StatusActive
	r.versions.Store(version, target)
	return nil
}

// Deprecate marks versions as DEPRECATED.
func (r *Registry) Deprecate(versions ...int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range versions {
		e, ok := r.versions.Load(v)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownVersion, v)
		}
		e.status = StatusDeprecated
		r.versions.Store(v, e)
	}
	return nil
}

// Active returns the active schema.
func (r *Registry) Active() (*SampleIndexSchema, error) {
	var active *SampleIndexSchema
	r.versions.Range(func(_ int, e registered) bool {
		if e.status == StatusActive {
			active = e.schema
			return false
		}
		return true
	})
	if active == nil {
		return nil, ErrNoActiveVersion
	}
	return active, nil
}

// Versions returns every registered version with the given status.
func (r *Registry) Versions(status Status) []int {
	var out []int
	r.versions.Range(func(v int, e registered) bool {
		if e.status == status {
			out = append(out, v)
		}
		return true
	})
	return out
}

// LastVersion returns the highest registered version, or 0.
func (r *Registry) LastVersion() int {
	last := 0
	r.versions.Range(func(v int, _ registered) bool {
		last = max(last, v)
		return true
	})
	return last
}
