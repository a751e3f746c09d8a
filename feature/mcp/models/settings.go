package models

import "sort"

// Client is a host application consuming server definitions.
type Client struct {
	// Name is the display name.
	Name string `json:"name"`
	// ConfigPath is the client's own (external) config file.
	ConfigPath string `json:"configPath"`
	// Enabled clients take part in aggregation and divergence checks.
	Enabled bool `json:"enabled"`
	// BuiltIn clients cannot be deleted.
	BuiltIn bool `json:"builtIn"`
	// SyncGroup references the group sharing this client's active set, or null.
	SyncGroup *string `json:"syncGroup"`
}

// Group returns the sync group id, or "" when the client is not grouped.
func (c Client) Group() string {
	if c.SyncGroup == nil {
		return ""
	}
	return *c.SyncGroup
}

// WithGroup returns a copy of c referencing group id (or none when id is "").
func (c Client) WithGroup(id string) Client {
	if id == "" {
		c.SyncGroup = nil
		return c
	}
	c.SyncGroup = &id
	return c
}

// SyncGroup is a set of clients sharing one active-config file.
type SyncGroup struct {
	// Members are client ids in join order.
	Members []string `json:"members"`
	// ConfigPath is the shared active-config file.
	ConfigPath string `json:"configPath"`
}

// HasMember reports whether id belongs to the group.
func (g SyncGroup) HasMember(id string) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Without returns a copy of g with id removed from the members.
func (g SyncGroup) Without(id string) SyncGroup {
	out := SyncGroup{ConfigPath: g.ConfigPath, Members: make([]string, 0, len(g.Members))}
	for _, m := range g.Members {
		if m != id {
			out.Members = append(out.Members, m)
		}
	}
	return out
}

// Settings is the content of settings.json.
type Settings struct {
	// MaxBackups is the number of backups kept per file.
	MaxBackups int `json:"maxBackups"`
	// SyncClients propagates saves into the clients' own config files and
	// enables the divergence check.
	SyncClients bool `json:"syncClients"`
	// Clients are keyed by client id.
	Clients map[string]Client `json:"clients"`
	// SyncGroups are keyed by group id.
	SyncGroups map[string]SyncGroup `json:"syncGroups"`
}

// Clone returns a deep copy of s with non-nil maps.
func (s *Settings) Clone() *Settings {
	out := &Settings{
		MaxBackups:  s.MaxBackups,
		SyncClients: s.SyncClients,
		Clients:     make(map[string]Client, len(s.Clients)),
		SyncGroups:  make(map[string]SyncGroup, len(s.SyncGroups)),
	}
	for id, c := range s.Clients {
		out.Clients[id] = c.WithGroup(c.Group())
	}
	for id, g := range s.SyncGroups {
		out.SyncGroups[id] = SyncGroup{
			Members:    append([]string(nil), g.Members...),
			ConfigPath: g.ConfigPath,
		}
	}
	return out
}

// ClientIDs returns the client ids in sorted order.
func (s *Settings) ClientIDs() []string {
	ids := make([]string, 0, len(s.Clients))
	for id := range s.Clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnabledClientIDs returns the ids of enabled clients in sorted order.
func (s *Settings) EnabledClientIDs() []string {
	var ids []string
	for _, id := range s.ClientIDs() {
		if s.Clients[id].Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// LiveGroup returns the sync group of client id when both the reference
// and the group record exist.
func (s *Settings) LiveGroup(id string) (string, SyncGroup, bool) {
	c, ok := s.Clients[id]
	if !ok || c.Group() == "" {
		return "", SyncGroup{}, false
	}
	g, ok := s.SyncGroups[c.Group()]
	if !ok {
		return "", SyncGroup{}, false
	}
	return c.Group(), g, true
}
