package registry

import (
	"regexp"
	"sort"
	"strings"
)

// normalizeName lowercases and strips spaces, hyphens and underscores so
// "Front-Yard" and "front yard" compare equal.
func normalizeName(name string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "_", "")
	return replacer.Replace(strings.ToLower(name))
}

// FuzzyMatch resolves a requested speaker name against a name-to-ID table.
// Matching is case/space/hyphen/underscore-insensitive and accepts
// containment in either direction, so "Front" finds "Front Yard" and
// "front yard speakers" finds "Front Yard". Candidates are tried in sorted
// key order and the first match wins, keeping resolution deterministic.
func FuzzyMatch(requested string, table map[string]string) (id string, matched string, ok bool) {
	want := normalizeName(requested)
	if want == "" {
		return "", "", false
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		have := normalizeName(key)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return table[key], key, true
		}
	}
	return "", "", false
}

var (
	rinconPattern = regexp.MustCompile(`RINCON_[0-9A-Fa-f]+`)
	uuidPattern   = regexp.MustCompile(`uuid:[0-9A-Fa-f-]+`)
	macPattern    = regexp.MustCompile(`(?i)\b([0-9A-F]{2}:){5}[0-9A-F]{2}\b`)
)

// ExtractSonosID pulls the RINCON_<hex> token out of a Sonos identifier or
// path. Returns the input unchanged when no token is present, so raw group
// IDs pass through.
func ExtractSonosID(raw string) string {
	if match := rinconPattern.FindString(raw); match != "" {
		return match
	}
	return raw
}

// ExtractUPnPID pulls the uuid:<hex> token out of a UPnP device identifier.
// Returns the input unchanged when no token is present.
func ExtractUPnPID(raw string) string {
	if match := uuidPattern.FindString(raw); match != "" {
		return match
	}
	return raw
}

// ExtractBluetoothID pulls a MAC address out of a Bluetooth identifier.
// Returns the input unchanged when no MAC is present.
func ExtractBluetoothID(raw string) string {
	if match := macPattern.FindString(raw); match != "" {
		return match
	}
	return raw
}

// ComposeRoonID builds the "<core_id>:<output_id>" form the device expects
// for Roon outputs. IDs that already carry a core prefix pass through.
func ComposeRoonID(coreID, outputID string) string {
	if strings.Contains(outputID, ":") {
		return outputID
	}
	return coreID + ":" + outputID
}
