package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importedRecord(nodeID, translated string) *Record {
	return &Record{
		NodeID:         nodeID,
		OriginalText:   "Original " + nodeID,
		TranslatedText: translated,
		Status:         StatusApproved,
		LastModified:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:        9,
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		strategy    MergeStrategy
		wantText    string
		wantStatus  Status
		wantVersion int
		wantResult  MergeResult
	}{
		{MergeOverwrite, "Nouveau", StatusApproved, 2, MergeResult{Added: 1, Updated: 2}},
		{MergeSkip, "Ancien", StatusPending, 1, MergeResult{Added: 1, Unchanged: 2}},
		{MergeUpdate, "Nouveau", StatusNeedsReview, 2, MergeResult{Added: 1, Updated: 1, Unchanged: 1}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			s, err := OpenJSON(filepath.Join(t.TempDir(), "store.json"))
			require.NoError(t, err)
			_, err = s.Save("fr", Intent{NodeID: "id-a", OriginalText: "Hello", TranslatedText: "Ancien"})
			require.NoError(t, err)
			_, err = s.Save("fr", Intent{NodeID: "id-same", TranslatedText: "Pareil"})
			require.NoError(t, err)

			res, err := Merge(s, "fr", []*Record{
				importedRecord("id-a", "Nouveau"),
				importedRecord("id-same", "Pareil"),
				importedRecord("id-new", "Neuf"),
			}, tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, res)

			rec, err := s.Find("fr", "id-a")
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, rec.TranslatedText)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantVersion, rec.Version)

			added, err := s.Find("fr", "id-new")
			require.NoError(t, err)
			require.NotNil(t, added)
			assert.Equal(t, 1, added.Version, "new records start at version 1")
		})
	}

	t.Run("invalid import writes nothing", func(t *testing.T) {
		s, err := OpenJSON(filepath.Join(t.TempDir(), "store.json"))
		require.NoError(t, err)
		_, err = Merge(s, "fr", []*Record{importedRecord("id-a", "x"), {NodeID: ""}}, MergeOverwrite)
		assert.ErrorIs(t, err, ErrInvalidRecord)
		recs, err := s.List("fr")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestParseMergeStrategy(t *testing.T) {
	got, err := ParseMergeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, MergeUpdate, got)

	got, err = ParseMergeStrategy("Overwrite")
	require.NoError(t, err)
	assert.Equal(t, MergeOverwrite, got)

	_, err = ParseMergeStrategy("replace")
	assert.Error(t, err)
}

func TestComputeStats(t *testing.T) {
	recs := []*Record{
		{Status: StatusPending}, {Status: StatusApproved}, {Status: StatusApproved}, {Status: StatusNeedsReview},
	}
	st := ComputeStats(recs, 6)
	assert.Equal(t, Stats{
		Total: 6, Translated: 4, Untranslated: 2,
		Pending: 1, Approved: 2, NeedsReview: 1, Progress: 67,
	}, st)

	assert.Equal(t, 0, ComputeStats(nil, 0).Progress)
	assert.Equal(t, 0, ComputeStats(recs, 2).Untranslated)
}

func TestFilter(t *testing.T) {
	recs := sampleRecords()
	assert.Len(t, Filter(recs, ""), 2)
	assert.Len(t, Filter(recs, "SALUT"), 1)
	assert.Len(t, Filter(recs, "example.com"), 2)
	assert.Len(t, Filter(recs, "p-0"), 1)
	assert.Empty(t, Filter(recs, "nothing like this"))
}

func TestPruneBackups(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSON(filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	_, err = s.Save("fr", Intent{NodeID: "id-a", TranslatedText: "x"})
	require.NoError(t, err)

	backups := filepath.Join(dir, "backups")
	var paths []string
	for i := 0; i < 4; i++ {
		p, err := WriteBackup(s, backups)
		require.NoError(t, err)
		paths = append(paths, p)
		time.Sleep(5 * time.Millisecond)
	}

	removed, err := PruneBackups(backups, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, paths[:2], removed)

	for _, p := range paths[2:] {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}
