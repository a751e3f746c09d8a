package models

import (
	"encoding/json"
	"sort"
)

// ConfigFile is the on-disk shape of the registry and of every active-config
// file: presence of a name in MCPServers means the server is enabled.
type ConfigFile struct {
	MCPServers ServerMap `json:"mcpServers"`
}

// NewConfigFile returns a ConfigFile with an empty, non-nil server map.
func NewConfigFile() *ConfigFile {
	return &ConfigFile{MCPServers: ServerMap{}}
}

// Normalize replaces a nil server map with an empty one.
func (f *ConfigFile) Normalize() *ConfigFile {
	if f.MCPServers == nil {
		f.MCPServers = ServerMap{}
	}
	return f
}

// Clone returns a deep copy of f.
func (f *ConfigFile) Clone() *ConfigFile {
	return &ConfigFile{MCPServers: f.MCPServers.Clone()}
}

// ServerView is a definition annotated for a response payload.
// Sources and Conflicts are only set in the aggregated view.
type ServerView struct {
	Definition ServerDefinition
	Enabled    bool
	Sources    []string
	Conflicts  *bool
}

// MarshalJSON flattens the definition and adds the annotations.
func (v ServerView) MarshalJSON() ([]byte, error) {
	fields, err := v.Definition.fields()
	if err != nil {
		return nil, err
	}

	enabled, _ := json.Marshal(v.Enabled)
	fields["enabled"] = enabled
	if v.Sources != nil {
		sources, err := json.Marshal(v.Sources)
		if err != nil {
			return nil, err
		}
		fields["_sources"] = sources
	}
	if v.Conflicts != nil {
		conflicts, _ := json.Marshal(*v.Conflicts)
		fields["_conflicts"] = conflicts
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a definition posted by a caller. A missing enabled
// flag means enabled.
func (v *ServerView) UnmarshalJSON(data []byte) error {
	var def ServerDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	var flags struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}

	*v = ServerView{Definition: def, Enabled: true}
	if flags.Enabled != nil {
		v.Enabled = *flags.Enabled
	}
	return nil
}

// View is the response/request payload for a set of annotated servers.
type View struct {
	MCPServers map[string]ServerView `json:"mcpServers"`
}

// Active returns the enabled part of the view as an active set.
func (v View) Active() ServerMap {
	out := ServerMap{}
	for name, sv := range v.MCPServers {
		if sv.Enabled {
			out[name] = sv.Definition
		}
	}
	return out
}

// All returns every definition of the view, enabled or not.
func (v View) All() ServerMap {
	out := make(ServerMap, len(v.MCPServers))
	for name, sv := range v.MCPServers {
		out[name] = sv.Definition
	}
	return out
}

// EnabledNames returns the names flagged enabled, sorted.
func (v View) EnabledNames() []string {
	var names []string
	for name, sv := range v.MCPServers {
		if sv.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
