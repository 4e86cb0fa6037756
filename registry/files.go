package registry

import "github.com/sorhq/sor/core"

// SkillRegistryFile is the on-disk JSON shape of a base skill registry.
type SkillRegistryFile struct {
	RegistryVersion string                  `json:"registry_version"`
	Skills          []*core.SkillDefinition `json:"skills"`
}

// OpRegistryFile is the on-disk JSON shape of a base op registry.
type OpRegistryFile struct {
	RegistryVersion string               `json:"registry_version"`
	Ops             []*core.OpDefinition `json:"ops"`
}

// CapabilityEntry is one row of the capability registry file; only ID is
// consumed by the loader, per spec.
type CapabilityEntry struct {
	ID string `json:"id"`
}

// CapabilityRegistryFile is the on-disk JSON shape of the capability list.
type CapabilityRegistryFile struct {
	Capabilities []CapabilityEntry `json:"capabilities"`
}

// OverlayChannels is the overlay-file shape of a channel allow/deny override.
type OverlayChannels struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// OverlayActors is the overlay-file shape of an actor allow/deny override.
type OverlayActors struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// Override is a single overlay entry targeting one registry entry.
type Override struct {
	Name      string           `yaml:"name"`
	Version   string           `yaml:"version,omitempty"`
	Status    string           `yaml:"status,omitempty"`
	Autonomy  string           `yaml:"autonomy,omitempty"`
	RateLimit *core.RateLimit  `yaml:"rate_limit,omitempty"`
	Channels  *OverlayChannels `yaml:"channels,omitempty"`
	Actors    *OverlayActors   `yaml:"actors,omitempty"`
}

// OverlayFile is the on-disk YAML shape of a registry overlay.
type OverlayFile struct {
	OverlayVersion string     `yaml:"overlay_version"`
	Overrides      []Override `yaml:"overrides"`
}
