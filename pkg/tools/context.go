package tools

import (
	"maps"
	"sync"
)

// SessionContext is the state a conversation carries between tool calls:
// the player name remembered from user speech and the course par map.
type SessionContext struct {
	mu         sync.Mutex
	playerName string
	pars       map[int]int
}

// NewSessionContext returns an empty context.
func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// RememberName stores the player's name for later re-registration.
func (c *SessionContext) RememberName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerName = name
}

// PlayerName returns the remembered name, or "".
func (c *SessionContext) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

// SetPars stores pars if every hole 1-18 is present and reports whether it
// did. Partial maps are discarded.
func (c *SessionContext) SetPars(pars map[int]int) bool {
	for h := minHole; h <= maxHole; h++ {
		if _, ok := pars[h]; !ok {
			return false
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pars = maps.Clone(pars)
	return true
}

// ParsLoaded reports whether a complete par map is held.
func (c *SessionContext) ParsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pars != nil
}

// Par returns the par of hole.
func (c *SessionContext) Par(hole int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pars[hole]
	return p, ok
}

// Reset forgets the name and the par map.
func (c *SessionContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerName = ""
	c.pars = nil
}
