package zipdir

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbuckler300/o3de/zipfile"
)

func testArchiveMixed(t *testing.T) []byte {
	t.Helper()
	return testArchive{
		files: []testFile{
			{name: "Textures/Rock.DDS", data: []byte("rock bytes")},
			{name: "levels/city/map.dat", data: bytes1024(), method: zipfile.MethodDeflate},
			{name: "Readme.TXT", data: []byte("read me"), localExtra: []byte{0xCA, 0xFE, 0x00, 0x00}},
			{name: "levels/city/nav.dat", data: []byte("nav")},
		},
		dirs: []string{"levels/", "levels/city/"},
	}.build(t)
}

func bytes1024() []byte {
	b := make([]byte, 1024)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestTreeNormalizedPaths(t *testing.T) {
	cache, err := openBytes(t, testArchiveMixed(t), InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	var paths []string
	require.NoError(t, cache.Walk(func(path string, e *FileEntry) error {
		paths = append(paths, path)
		return nil
	}))

	assert.Equal(t, []string{
		"readme.txt",
		"levels/city/map.dat",
		"levels/city/nav.dat",
		"textures/rock.dds",
	}, paths)

	// every pooled name is lowercase with canonical separators for as long as
	// the cache lives.
	_ = cache.Walk(func(path string, e *FileEntry) error {
		name := cache.Path(e)
		assert.Equal(t, path, name)
		assert.Equal(t, strings.ToLower(name), name)
		assert.NotContains(t, name, `\`)
		return nil
	})
}

func TestTreeEOFOffsetSweep(t *testing.T) {
	cache, err := openBytes(t, testArchiveMixed(t), InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	var entries []*FileEntry
	_ = cache.Walk(func(_ string, e *FileEntry) error {
		entries = append(entries, e)
		return nil
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DataOffset < entries[j].DataOffset
	})

	for i, e := range entries {
		assert.Equal(t, e.DataOffset+e.CompressedSize, e.EOFOffset)
		if i+1 < len(entries) {
			assert.LessOrEqual(t, e.EOFOffset, entries[i+1].DataOffset)
		} else {
			assert.LessOrEqual(t, e.EOFOffset, cache.CDROffset())
		}
		// the free region runs exactly to the next payload (or the CDR).
		assert.Equal(t, e.FreeEnd-e.EOFOffset, cache.FreeSpaceAfter(e))
	}
}

func TestTreeDataOffsetMatchesNaiveWalk(t *testing.T) {
	cache, err := openBytes(t, testArchiveMixed(t), InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	// readme.txt is the only entry with a local extra field; its payload
	// starts after header + name + extra.
	e := cache.FindEntry("readme.txt")
	require.NotNil(t, e)
	want := e.LocalHeaderOffset + zipfile.LocalHeaderLen + uint32(len("Readme.TXT")) + 4
	assert.Equal(t, want, e.DataOffset)
}

func TestTreeReopenIsIdentical(t *testing.T) {
	data := testArchiveMixed(t)

	type snapshot struct {
		path string
		e    FileEntry
	}
	open := func() (out []snapshot) {
		cache, err := openBytes(t, data, InitDefault, 0)
		require.NoError(t, err)
		defer cache.Close()
		_ = cache.Walk(func(path string, e *FileEntry) error {
			out = append(out, snapshot{path: path, e: *e})
			return nil
		})
		return
	}

	assert.Equal(t, open(), open())
}

func TestTreeWrongSeparatorNormalized(t *testing.T) {
	// a name with the wrong separator cannot match its local header byte for
	// byte, which is exactly the case InitFull exists for: trust the CDR.
	data := testArchive{
		files: []testFile{{name: `Models\Crate.cgf`, data: []byte("crate")}},
	}.build(t)

	cache, err := openBytes(t, data, InitFull, 0)
	require.NoError(t, err)
	defer cache.Close()

	e := cache.FindEntry("models/crate.cgf")
	require.NotNil(t, e)
	assert.Equal(t, "models/crate.cgf", cache.Path(e))
}

func TestTreeNTFSModTime(t *testing.T) {
	modified := time.Date(2024, time.March, 1, 12, 30, 15, 0, time.UTC)

	data := testArchive{
		files: []testFile{
			{name: "stamped.bin", data: []byte("x"), ntfsTime: zipfile.TimeToNTFSTime(modified)},
			{name: "plain.bin", data: []byte("y")},
		},
	}.build(t)

	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.True(t, modified.Equal(cache.FindEntry("stamped.bin").Modified))
	// without the extra field the DOS stamps are all the builder provides,
	// and those are zero here.
	assert.True(t, zipfile.DosDateTimeToTime(0, 0).Equal(cache.FindEntry("plain.bin").Modified))
}

func TestTreeAddAndFind(t *testing.T) {
	root := newTree()
	a, b := &FileEntry{}, &FileEntry{}
	root.add("a/b/c.txt", a)
	root.add("a/d.txt", b)

	assert.Same(t, a, root.find("a/b/c.txt"))
	assert.Same(t, b, root.find("a/d.txt"))
	assert.Nil(t, root.find("a/b"))
	assert.Nil(t, root.find("a/b/c.txt/d"))
	assert.Nil(t, root.find("missing"))
	assert.Equal(t, 2, root.count())
}
