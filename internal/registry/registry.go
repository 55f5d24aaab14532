package registry

import (
	"fmt"
	"sync"

	"github.com/cverdier/AcqGo/internal/hw/instrument"
	"github.com/cverdier/AcqGo/internal/hw/source"
)

// Registry maps string ids to hardware sources and instruments, with an
// alias layer on top (id → id, loaded from configuration). It is an
// explicit object passed to consumers rather than process-wide state,
// so tests and multi-instrument setups can each carry their own.
//
// Lookups resolve aliases first; registered objects are always keyed by
// their canonical id.
type Registry struct {
	mu          sync.RWMutex
	aliases     map[string]string
	sources     map[string]source.Source
	instruments map[string]instrument.Instrument
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		aliases:     make(map[string]string),
		sources:     make(map[string]source.Source),
		instruments: make(map[string]instrument.Instrument),
	}
}

// AddAlias maps alias to target. Chained aliases are allowed
// (a → b → canonical); cycles are caught at resolution time.
func (r *Registry) AddAlias(alias, target string) {
	r.mu.Lock()
	r.aliases[alias] = target
	r.mu.Unlock()
}

// Resolve follows the alias chain from id to a canonical id. Returns an
// error on alias cycles.
func (r *Registry) Resolve(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(id)
}

func (r *Registry) resolveLocked(id string) (string, error) {
	seen := map[string]bool{id: true}
	for {
		target, ok := r.aliases[id]
		if !ok {
			return id, nil
		}
		if seen[target] {
			return "", fmt.Errorf("alias cycle at %q", target)
		}
		seen[target] = true
		id = target
	}
}

// RegisterSource registers a source under its canonical id.
func (r *Registry) RegisterSource(id string, s source.Source) {
	r.mu.Lock()
	r.sources[id] = s
	r.mu.Unlock()
}

// SourceByID looks up a source by id or alias.
func (r *Registry) SourceByID(id string) (source.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, err := r.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	s, ok := r.sources[canonical]
	if !ok {
		return nil, fmt.Errorf("no source registered for %q", canonical)
	}
	return s, nil
}

// RegisterInstrument registers an instrument under its canonical id.
func (r *Registry) RegisterInstrument(id string, ins instrument.Instrument) {
	r.mu.Lock()
	r.instruments[id] = ins
	r.mu.Unlock()
}

// InstrumentByID looks up an instrument by id or alias.
func (r *Registry) InstrumentByID(id string) (instrument.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, err := r.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	ins, ok := r.instruments[canonical]
	if !ok {
		return nil, fmt.Errorf("no instrument registered for %q", canonical)
	}
	return ins, nil
}
