package player

import "sync"

// Registry owns one Player per guild for the life of the process.
type Registry struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	player *Player
	active bool
}

func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, entries: make(map[string]*entry)}
}

func (r *Registry) entryLocked(guildID string) *entry {
	if e, ok := r.entries[guildID]; ok {
		return e
	}
	e := &entry{player: NewPlayer(guildID, r.opts)}
	r.entries[guildID] = e
	return e
}

func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(guildID).player
}

// Peek returns the guild's player without creating one.
func (r *Registry) Peek(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[guildID]; ok {
		return e.player
	}
	return nil
}

// TryAcquire marks the guild as having a running playback cycle. It fails if
// a cycle is already running or the player is not Idle. The returned release
// func is safe to call more than once.
func (r *Registry) TryAcquire(guildID string) (*Player, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(guildID)
	if e.active || e.player.Status() != StatusIdle {
		return e.player, func() {}, false
	}
	e.active = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			e.active = false
			r.mu.Unlock()
		})
	}
	return e.player, release, true
}

// Active reports whether a playback cycle currently holds the guild.
func (r *Registry) Active(guildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[guildID]
	return ok && e.active
}
