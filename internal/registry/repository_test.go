package registry

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/victrola-bridge/internal/db"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()
	pair, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	return NewRepository(pair)
}

func TestSaveAndLoadSeeds(t *testing.T) {
	repo := testRepository(t)

	err := repo.SaveSeeds(SeedTable{
		Roon: []Seed{{DisplayName: "Office", NetworkID: "1701abcd"}},
		UPnP: []Seed{{DisplayName: "TV", NetworkID: "uuid:123"}},
	})
	require.NoError(t, err)

	table, err := repo.LoadSeeds()
	require.NoError(t, err)
	require.Len(t, table.Roon, 1)
	assert.Equal(t, "Office", table.Roon[0].DisplayName)
	assert.Equal(t, "1701abcd", table.Roon[0].NetworkID)
	require.Len(t, table.UPnP, 1)
	assert.Equal(t, "uuid:123", table.UPnP[0].NetworkID)
}

func TestSaveSeedsUpserts(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.SaveSeeds(SeedTable{
		Roon: []Seed{{DisplayName: "Office", NetworkID: "old"}},
	}))
	require.NoError(t, repo.SaveSeeds(SeedTable{
		Roon: []Seed{{DisplayName: "Office", NetworkID: "new"}},
	}))

	table, err := repo.LoadSeeds()
	require.NoError(t, err)
	require.Len(t, table.Roon, 1)
	assert.Equal(t, "new", table.Roon[0].NetworkID)
}

func TestReplaceRecords(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.ReplaceRecords(victrola.SourceSonos, []SpeakerRecord{
		{DisplayName: "Old", Backend: victrola.SourceSonos, ResolvedID: "RINCON_OLD"},
	}))
	require.NoError(t, repo.ReplaceRecords(victrola.SourceSonos, []SpeakerRecord{
		{DisplayName: "Living Room", Backend: victrola.SourceSonos, ResolvedID: "RINCON_AAA",
			SonosGroupID: "RINCON_AAA:3647", Preferred: true},
	}))

	records, err := repo.LoadRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Living Room", records[0].DisplayName)
	assert.Equal(t, "RINCON_AAA", records[0].ResolvedID)
	assert.Equal(t, "RINCON_AAA:3647", records[0].SonosGroupID)
	assert.True(t, records[0].Preferred)
}

func TestReplaceRecordsScopedToBackend(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.ReplaceRecords(victrola.SourceRoon, []SpeakerRecord{
		{DisplayName: "Office", Backend: victrola.SourceRoon, ResolvedID: "core:out"},
	}))
	require.NoError(t, repo.ReplaceRecords(victrola.SourceSonos, []SpeakerRecord{
		{DisplayName: "Kitchen", Backend: victrola.SourceSonos, ResolvedID: "RINCON_K"},
	}))

	records, err := repo.LoadRecords()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
