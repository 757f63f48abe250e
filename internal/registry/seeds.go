package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeedFile reads a YAML seed table:
//
//	roon:
//	  - name: Office
//	    id: 1701abcd
//	upnp:
//	  - name: TV
//	    id: uuid:123
//	bluetooth:
//	  - name: Headphones
//	    id: AA:BB:CC:DD:EE:FF
func LoadSeedFile(path string) (SeedTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedTable{}, fmt.Errorf("read seed file: %w", err)
	}

	var table SeedTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return SeedTable{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return table, nil
}
