package scanvalidator

import (
	"sync"

	"campus-access/models/actionpoint"
	"campus-access/models/scanlog"
)

// EffectHandler performs the real-world consequence of a successful scan:
// marking attendance, incrementing a mess count, recording a checkout.
// Handlers are owned by external collaborators; the engine only dispatches.
// The handler runs after the success row is durable, and its error does not
// revoke the decision.
type EffectHandler func(entry *scanlog.ScanLog, ap *actionpoint.ActionPoint) error

// EffectRegistry maps action types to their collaborator-supplied handlers
type EffectRegistry struct {
	mu       sync.RWMutex
	handlers map[actionpoint.ActionType]EffectHandler
}

func NewEffectRegistry() *EffectRegistry {
	return &EffectRegistry{
		handlers: make(map[actionpoint.ActionType]EffectHandler),
	}
}

// Register attaches a handler for the given action type, replacing any
// previous one.
func (r *EffectRegistry) Register(actionType actionpoint.ActionType, handler EffectHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = handler
}

// Get returns the handler for the action type, if any is registered
func (r *EffectRegistry) Get(actionType actionpoint.ActionType) (EffectHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[actionType]
	return handler, ok
}
