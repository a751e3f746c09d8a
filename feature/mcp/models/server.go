package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Connection modes of a server definition.
const (
	TypeStdio = "stdio"
	TypeSSE   = "sse"
	TypeHTTP  = "http"
)

// transientKeys are response annotations that never belong to a stored definition.
var transientKeys = map[string]struct{}{
	"enabled":    {},
	"_sources":   {},
	"_conflicts": {},
}

// InspectorConfig is the optional debug/inspector sub-config of a server.
type InspectorConfig struct {
	Enabled *bool             `json:"enabled,omitempty"`
	Port    int               `json:"port,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ServerDefinition describes how a client launches or connects to one server.
// Keys this type does not model are kept in Extra and written back unchanged,
// so a definition survives a read/write cycle structurally intact.
type ServerDefinition struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Type      string            `json:"type,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Inspector *InspectorConfig  `json:"inspector,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownField decodes raw into the typed field for key. It reports false when
// key is not modelled or the value does not fit the typed field, leaving the
// field untouched.
func (d *ServerDefinition) knownField(key string, raw json.RawMessage) bool {
	switch key {
	case "command":
		return decodeInto(raw, &d.Command)
	case "args":
		return decodeInto(raw, &d.Args)
	case "env":
		return decodeInto(raw, &d.Env)
	case "type":
		return decodeInto(raw, &d.Type)
	case "url":
		return decodeInto(raw, &d.URL)
	case "headers":
		return decodeInto(raw, &d.Headers)
	case "inspector":
		return decodeStrict(raw, &d.Inspector)
	default:
		return false
	}
}

// omitted reports whether the typed field for key is empty and so would be
// left out when the definition is written back.
func (d *ServerDefinition) omitted(key string) bool {
	switch key {
	case "command":
		return d.Command == ""
	case "args":
		return len(d.Args) == 0
	case "env":
		return len(d.Env) == 0
	case "type":
		return d.Type == ""
	case "url":
		return d.URL == ""
	case "headers":
		return len(d.Headers) == 0
	case "inspector":
		return d.Inspector == nil
	default:
		return false
	}
}

func decodeInto[T any](raw json.RawMessage, dst *T) bool {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

// decodeStrict is decodeInto that also rejects unknown object keys, so a
// partially modelled sub-object is kept verbatim instead of losing keys.
func decodeStrict[T any](raw json.RawMessage, dst *T) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return false
	}
	*dst = v
	return true
}

// UnmarshalJSON decodes a definition, dropping transient response keys.
func (d *ServerDefinition) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*d = ServerDefinition{}
	for key, raw := range fields {
		if _, skip := transientKeys[key]; skip {
			continue
		}
		if d.knownField(key, raw) && !d.omitted(key) {
			continue
		}
		// Values that do not fit the typed field (e.g. numeric env values) and
		// present but empty values the typed field would omit are kept verbatim
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[key] = raw
	}
	return nil
}

// MarshalJSON encodes modelled fields and Extra into a single object.
func (d ServerDefinition) MarshalJSON() ([]byte, error) {
	fields, err := d.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (d ServerDefinition) fields() (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(d.Extra)+7)
	for k, v := range d.Extra {
		fields[k] = v
	}

	// Alias drops the custom marshaller
	type alias ServerDefinition
	known, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(known, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		fields[k] = v
	}
	return fields, nil
}

// Mode returns the connection mode, inferring it when Type is not set.
func (d ServerDefinition) Mode() string {
	if d.Type != "" {
		return d.Type
	}
	if d.URL != "" {
		return TypeSSE
	}
	return TypeStdio
}

// Clone returns a deep copy of d.
func (d ServerDefinition) Clone() ServerDefinition {
	out := d
	if d.Args != nil {
		out.Args = append([]string(nil), d.Args...)
	}
	out.Env = cloneStrings(d.Env)
	out.Headers = cloneStrings(d.Headers)
	if d.Inspector != nil {
		insp := *d.Inspector
		if insp.Enabled != nil {
			enabled := *insp.Enabled
			insp.Enabled = &enabled
		}
		if insp.Args != nil {
			insp.Args = append([]string(nil), insp.Args...)
		}
		insp.Env = cloneStrings(insp.Env)
		out.Inspector = &insp
	}
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ServerMap maps server names to definitions.
type ServerMap map[string]ServerDefinition

// Names returns the server names in sorted order.
func (m ServerMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of m. A nil map clones to an empty one.
func (m ServerMap) Clone() ServerMap {
	out := make(ServerMap, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
