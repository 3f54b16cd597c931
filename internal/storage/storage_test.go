package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLoad(t *testing.T) {
	s := NewFileStorage(t.TempDir())
	require.NoError(t, s.Init(false))

	require.NoError(t, s.Store(3, 1, strings.NewReader("symbolicName: a")))
	require.NoError(t, s.Store(3, 2, strings.NewReader("symbolicName: b")))

	data, err := s.Load(3, 1)
	require.NoError(t, err)
	assert.Equal(t, "symbolicName: a", string(data))
	assert.Equal(t, []int{1, 2}, s.Revisions(3))

	_, err = s.Load(3, 9)
	assert.ErrorContains(t, err, "not found")

	assert.Error(t, s.Store(3, 0, strings.NewReader("")))
}

func TestPruneAndRemove(t *testing.T) {
	s := NewFileStorage(t.TempDir())
	for rev := 1; rev <= 3; rev++ {
		require.NoError(t, s.Store(1, rev, strings.NewReader("x")))
	}

	require.NoError(t, s.Prune(1, 3))
	assert.Equal(t, []int{3}, s.Revisions(1))

	require.NoError(t, s.Remove(1))
	assert.Empty(t, s.Revisions(1))
}

func TestDataFile(t *testing.T) {
	root := t.TempDir()
	s := NewFileStorage(root)

	dir, err := s.DataFile(5, "")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	tests := []struct {
		name string
		want string
	}{
		{name: "state.db", want: "state.db"},
		{name: "../../etc/passwd", want: ".._.._etc_passwd"},
		{name: "..", want: "unnamed"},
		{name: "a b:c", want: "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.DataFile(5, tt.name)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.want), p)
		})
	}
}

func TestRecords(t *testing.T) {
	root := t.TempDir()
	s := NewFileStorage(root)

	require.NoError(t, s.SaveRecord(Record{ID: 2, Location: "file:b.yaml", Revision: 1, StartLevel: 1}))
	require.NoError(t, s.SaveRecord(Record{ID: 1, Location: "file:a.yaml", Revision: 3, AutoStart: true}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bundle-9"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bundle-9", recordFileName), []byte("id: ["), 0644))

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "file:a.yaml", recs[0].Location)
	assert.True(t, recs[0].AutoStart)
	assert.Equal(t, 3, recs[0].Revision)
	assert.Equal(t, "file:b.yaml", recs[1].Location)
}

func TestInitClean(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	s := NewFileStorage(root)
	require.NoError(t, s.Store(1, 1, strings.NewReader("x")))

	require.NoError(t, s.Init(true))
	assert.DirExists(t, root)
	assert.Empty(t, s.Revisions(1))

	recs, err := s.Records()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
