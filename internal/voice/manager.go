package voice

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Manager keeps the current voice connection per guild.
type Manager struct {
	s *discordgo.Session

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewManager(s *discordgo.Session) *Manager {
	return &Manager{s: s, conns: make(map[string]*Connection)}
}

// Connect returns the guild's open connection to channelID, joining (or
// moving) when needed.
func (m *Manager) Connect(guildID, channelID string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[guildID]; ok && !c.Closed() {
		if c.ChannelID() == channelID {
			return c, nil
		}
		_ = c.Disconnect()
	}

	c, err := Join(m.s, guildID, channelID)
	if err != nil {
		return nil, err
	}
	m.conns[guildID] = c
	return c, nil
}

// Get returns the guild's open connection, if any.
func (m *Manager) Get(guildID string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[guildID]; ok && !c.Closed() {
		return c
	}
	return nil
}

// DisconnectAll leaves every voice channel; used on shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Disconnect()
	}
}
