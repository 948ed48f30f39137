package zipdir

import (
	"sort"
	"strings"
	"time"
)

// FileEntry describes one file inside the archive. The entry does not store
// its own name; NameOffset/NameLen locate the normalized name inside the CDR
// buffer owned by the Cache (one contiguous string pool for the whole
// directory), and Cache.Path materializes it.
type FileEntry struct {
	Method uint16

	// Desc fields copied from the central directory.
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32

	// LocalHeaderOffset is where the local file header starts; DataOffset is
	// where the payload starts after the local header, its name, and its
	// extra field; EOFOffset is DataOffset plus the compressed size.
	LocalHeaderOffset uint32
	DataOffset        uint32
	EOFOffset         uint32

	// FreeEnd is set by the post-parse sweep: the first byte past this
	// entry's usable region, i.e. the next entry's DataOffset or the CDR
	// offset for the last entry. The gap between EOFOffset and FreeEnd may be
	// used for in-place growth without moving other data.
	FreeEnd uint32

	// NameOffset and NameLen locate the normalized name in the CDR buffer.
	// NameOffset doubles as the sort key reproducing on-disk CDR order.
	NameOffset uint32
	NameLen    uint16

	// ModTime and ModDate are the MS-DOS stamps from the directory; Modified
	// is the NTFS last-modify time when the entry carried one, otherwise the
	// DOS stamps converted.
	ModTime  uint16
	ModDate  uint16
	Modified time.Time
}

// Tree is the hierarchical directory index. Keys are single path segments of
// the normalized (lowercase, slash-separated) entry paths.
type Tree struct {
	dirs  map[string]*Tree
	files map[string]*FileEntry
}

func newTree() *Tree {
	return &Tree{}
}

// add inserts a normalized path, creating intermediate subtrees as needed.
func (t *Tree) add(path string, e *FileEntry) {
	for {
		i := strings.IndexByte(path, pathSeparator)
		if i < 0 {
			break
		}

		dir := path[:i]
		path = path[i+1:]
		if dir == "" {
			continue
		}

		sub := t.dirs[dir]
		if sub == nil {
			sub = newTree()
			if t.dirs == nil {
				t.dirs = make(map[string]*Tree)
			}
			t.dirs[dir] = sub
		}
		t = sub
	}

	if path == "" {
		return
	}
	if t.files == nil {
		t.files = make(map[string]*FileEntry)
	}
	t.files[path] = e
}

// find locates a normalized path. Returns nil if any segment is missing.
func (t *Tree) find(path string) *FileEntry {
	for {
		i := strings.IndexByte(path, pathSeparator)
		if i < 0 {
			break
		}

		dir := path[:i]
		path = path[i+1:]
		if dir == "" {
			continue
		}
		if t = t.dirs[dir]; t == nil {
			return nil
		}
	}

	return t.files[path]
}

// count returns the number of file leaves under t.
func (t *Tree) count() int {
	n := len(t.files)
	for _, sub := range t.dirs {
		n += sub.count()
	}
	return n
}

// walk visits every leaf in sorted order, files before subdirectories at each
// level, with the full normalized path. Returning a non-nil error from fn
// stops the walk.
func (t *Tree) walk(prefix string, fn func(path string, e *FileEntry) error) error {
	names := make([]string, 0, len(t.files))
	for name := range t.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fn(prefix+name, t.files[name]); err != nil {
			return err
		}
	}

	dirs := make([]string, 0, len(t.dirs))
	for name := range t.dirs {
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	for _, name := range dirs {
		if err := t.dirs[name].walk(prefix+name+string(pathSeparator), fn); err != nil {
			return err
		}
	}

	return nil
}
