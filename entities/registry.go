package entities

import (
	"github.com/velvetgames/partyhub/pkg/syncx"
)

// Registry owns every live participant, keyed by identity id. It is
// the only component that mutates the identity -> connection mapping;
// rooms resolve connections through Find at send time.
type Registry struct {
	participants syncx.Map[string, *Participant]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Bind installs the participant for its identity, kicking any previous
// connection (duplicate tab, stale session).
func (registry *Registry) Bind(participant *Participant) {
	if previous, ok := registry.participants.Load(participant.Id); ok {
		previous.Kick()
	}

	registry.participants.Store(participant.Id, participant)
}

func (registry *Registry) Find(userId string) *Participant {
	participant, ok := registry.participants.Load(userId)
	if !ok {
		return nil
	}
	return participant
}

// Unbind removes the entry on disconnect, but only if it still refers
// to the same session; a reconnect may already have replaced it.
func (registry *Registry) Unbind(userId, sessionId string) {
	current, ok := registry.participants.Load(userId)
	if !ok || current.SessionId != sessionId {
		return
	}

	registry.participants.Delete(userId)
}

func (registry *Registry) Count() int {
	return registry.participants.Len()
}
