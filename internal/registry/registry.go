package registry

import (
	"log"
	"sort"
	"sync"

	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// Registry maps human speaker names to the network IDs each backend expects.
// Sonos entries come live from the device's quickplay rows; Roon, UPnP and
// Bluetooth entries come from seed tables since the device exposes no
// discovery endpoint for them.
type Registry struct {
	mu sync.RWMutex

	// speakers[backend][displayName] = record
	speakers map[victrola.Source]map[string]SpeakerRecord

	roonCoreID string

	// persist is called after mutations when persistence is wired. Optional.
	persist func(backend victrola.Source, records []SpeakerRecord)
}

// New creates an empty registry. roonCoreID prefixes seeded Roon output IDs.
func New(roonCoreID string) *Registry {
	speakers := make(map[victrola.Source]map[string]SpeakerRecord, len(victrola.Sources))
	for _, source := range victrola.Sources {
		speakers[source] = make(map[string]SpeakerRecord)
	}
	return &Registry{speakers: speakers, roonCoreID: roonCoreID}
}

// SetPersistFunc wires a persistence hook invoked after each backend mutation.
func (r *Registry) SetPersistFunc(fn func(backend victrola.Source, records []SpeakerRecord)) {
	r.mu.Lock()
	r.persist = fn
	r.mu.Unlock()
}

// LoadSeeds installs seed entries for a backend, normalizing IDs to the form
// the device accepts. Existing entries with the same display name are kept;
// live discovery beats seeds.
func (r *Registry) LoadSeeds(table SeedTable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, source := range victrola.Sources {
		for _, seed := range table.ForBackend(source) {
			if seed.DisplayName == "" || seed.NetworkID == "" {
				continue
			}
			if _, exists := r.speakers[source][seed.DisplayName]; exists {
				continue
			}
			r.speakers[source][seed.DisplayName] = SpeakerRecord{
				DisplayName: seed.DisplayName,
				Backend:     source,
				ResolvedID:  r.normalizeID(source, seed.NetworkID),
			}
		}
	}
}

// Restore installs persisted records, typically at startup before the first
// poll cycle replaces the live backends.
func (r *Registry) Restore(records []SpeakerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		byName, ok := r.speakers[rec.Backend]
		if !ok {
			continue
		}
		byName[rec.DisplayName] = rec
	}
}

func (r *Registry) normalizeID(source victrola.Source, raw string) string {
	switch source {
	case victrola.SourceRoon:
		return ComposeRoonID(r.roonCoreID, raw)
	case victrola.SourceSonos:
		return ExtractSonosID(raw)
	case victrola.SourceUPnP:
		return ExtractUPnPID(raw)
	case victrola.SourceBluetooth:
		return ExtractBluetoothID(raw)
	}
	return raw
}

// UpdateFromQuickplay replaces the Sonos backend wholesale with the device's
// live quickplay speaker list. Returns the preferred speaker name, if any.
func (r *Registry) UpdateFromQuickplay(speakers []victrola.QuickplaySpeaker) (preferred string) {
	records := make(map[string]SpeakerRecord, len(speakers))
	for _, sp := range speakers {
		rec := SpeakerRecord{
			DisplayName:  sp.Name,
			Backend:      victrola.SourceSonos,
			ResolvedID:   ExtractSonosID(sp.ID),
			RawPath:      sp.Path,
			SonosGroupID: sp.SonosGroupID,
			Preferred:    sp.Preferred,
		}
		records[sp.Name] = rec
		if sp.Preferred {
			preferred = sp.Name
		}
	}

	r.mu.Lock()
	r.speakers[victrola.SourceSonos] = records
	persist := r.persist
	r.mu.Unlock()

	if persist != nil {
		persist(victrola.SourceSonos, recordList(records))
	}

	log.Printf("REGISTRY: sonos backend replaced, %d speakers", len(records))
	return preferred
}

// Set installs or updates a single record.
func (r *Registry) Set(rec SpeakerRecord) {
	r.mu.Lock()
	byName, ok := r.speakers[rec.Backend]
	if !ok {
		r.mu.Unlock()
		return
	}
	byName[rec.DisplayName] = rec
	persist := r.persist
	records := recordList(byName)
	r.mu.Unlock()

	if persist != nil {
		persist(rec.Backend, records)
	}
}

// Resolve fuzzy-matches a requested name within one backend and returns the
// matching record.
func (r *Registry) Resolve(backend victrola.Source, name string) (SpeakerRecord, bool) {
	r.mu.RLock()
	byName := r.speakers[backend]
	table := make(map[string]string, len(byName))
	for display, rec := range byName {
		table[display] = rec.ResolvedID
	}
	r.mu.RUnlock()

	_, matched, ok := FuzzyMatch(name, table)
	if !ok {
		return SpeakerRecord{}, false
	}

	r.mu.RLock()
	rec := r.speakers[backend][matched]
	r.mu.RUnlock()
	return rec, true
}

// ReverseResolve maps a network ID back to its display name. Lookup is
// scoped to one backend rather than scanning all of them: the settings rows
// that produce these IDs are already per-source, and a global scan would
// only invite collisions between backends. IDs are compared after
// normalization, so a full UPnP path still finds its uuid:-keyed record.
func (r *Registry) ReverseResolve(backend victrola.Source, id string) (string, bool) {
	want := r.normalizeID(backend, id)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.speakers[backend] {
		if rec.ResolvedID == want || rec.ResolvedID == id {
			return rec.DisplayName, true
		}
		if backend == victrola.SourceSonos && rec.SonosGroupID != "" && rec.SonosGroupID == id {
			return rec.DisplayName, true
		}
	}
	return "", false
}

// Names lists the display names registered for a backend, sorted.
func (r *Registry) Names(backend victrola.Source) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.speakers[backend]))
	for name := range r.speakers[backend] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records lists all records for a backend, sorted by display name.
func (r *Registry) Records(backend victrola.Source) []SpeakerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return recordList(r.speakers[backend])
}

func recordList(byName map[string]SpeakerRecord) []SpeakerRecord {
	records := make([]SpeakerRecord, 0, len(byName))
	for _, rec := range byName {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DisplayName < records[j].DisplayName
	})
	return records
}
