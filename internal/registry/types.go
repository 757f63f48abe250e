package registry

import (
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// SpeakerRecord is one resolved speaker in the registry: a human display name
// bound to the network ID the device accepts for quickplay/setDefaultOutput.
type SpeakerRecord struct {
	DisplayName  string          `json:"display_name"`
	Backend      victrola.Source `json:"backend"`
	ResolvedID   string          `json:"resolved_id"`
	RawPath      string          `json:"raw_path,omitempty"`
	SonosGroupID string          `json:"sonos_group_id,omitempty"`
	Preferred    bool            `json:"preferred"`
}

// Seed is a user-supplied name-to-ID hint for backends without a live
// discovery endpoint (Roon outputs, UPnP renderers, Bluetooth devices).
type Seed struct {
	DisplayName string `yaml:"name" json:"display_name"`
	NetworkID   string `yaml:"id" json:"network_id"`
}

// SeedTable groups seeds per backend, matching the YAML seed file layout.
type SeedTable struct {
	Roon      []Seed `yaml:"roon" json:"roon"`
	Sonos     []Seed `yaml:"sonos" json:"sonos"`
	UPnP      []Seed `yaml:"upnp" json:"upnp"`
	Bluetooth []Seed `yaml:"bluetooth" json:"bluetooth"`
}

// ForBackend returns the seed list for a backend.
func (t SeedTable) ForBackend(backend victrola.Source) []Seed {
	switch backend {
	case victrola.SourceRoon:
		return t.Roon
	case victrola.SourceSonos:
		return t.Sonos
	case victrola.SourceUPnP:
		return t.UPnP
	case victrola.SourceBluetooth:
		return t.Bluetooth
	}
	return nil
}
