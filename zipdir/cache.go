package zipdir

import (
	"errors"
	"hash/crc32"
	"io"
	"sort"
	"strings"

	"github.com/dbuckler300/o3de/zipfile"
)

// CacheFlag records the state a Cache was opened in.
type CacheFlag uint32

const (
	// CacheCdrDirty means the on-disk CDR does not reflect the in-memory
	// state and must be rewritten before the archive can be trusted by other
	// readers. Set on creation and on read-only opens.
	CacheCdrDirty CacheFlag = 1 << iota
	// CacheReadOnly forbids mutation of the archive.
	CacheReadOnly
	// CacheDontCompact asks downstream writers not to compact on flush.
	CacheDontCompact
)

// Cache is the finished directory index of one archive. It owns the file
// handle it was built from, the CDR buffer acting as the string pool for entry
// names, and the tree (or name-hash map) referring into that buffer. All three
// share one lifetime: Close releases them together.
//
// A Cache is safe for concurrent lookups; reads through ReadFile share one
// file position and need external coordination.
type Cache struct {
	file  io.ReadSeeker
	path  string
	flags CacheFlag

	// cdrOffset is where the central directory starts; appending new data to
	// the archive begins here.
	cdrOffset uint32
	eocdPos   int64

	pool    []byte
	root    *Tree
	crcMap  map[uint32]*FileEntry
	entries []*FileEntry

	encryptedHeaders zipfile.EncryptionType
	signedHeaders    zipfile.SignatureType
	headerExtended   zipfile.ExtendedTrailer
	headerEncryption zipfile.EncryptionTrailer
	headerSignature  zipfile.SignatureTrailer
}

// FilePath returns the path the archive was opened from. Empty when the
// factory ran with FlagDontMemorizeZipPath or over a caller-supplied stream.
func (c *Cache) FilePath() string {
	return c.path
}

// Flags returns the cache state flags.
func (c *Cache) Flags() CacheFlag {
	return c.flags
}

// CDROffset returns the file offset the central directory starts at.
func (c *Cache) CDROffset() uint32 {
	return c.cdrOffset
}

// Encryption and Signing report the techniques declared by the archive
// trailers; the algorithms themselves are the consumer's business.
func (c *Cache) Encryption() zipfile.EncryptionType {
	return c.encryptedHeaders
}

func (c *Cache) Signing() zipfile.SignatureType {
	return c.signedHeaders
}

// EncryptionTrailer returns the cipher material recorded for
// streamcipher-keytable archives.
func (c *Cache) EncryptionTrailer() zipfile.EncryptionTrailer {
	return c.headerEncryption
}

// SignatureTrailer returns the CDR signature recorded for signed archives.
func (c *Cache) SignatureTrailer() zipfile.SignatureTrailer {
	return c.headerSignature
}

// Count returns the number of file entries in the index.
func (c *Cache) Count() int {
	if c.crcMap != nil {
		return len(c.crcMap)
	}
	return c.root.count()
}

// Path materializes the normalized full path of an entry from the string
// pool. The pool stores each name exactly once for the life of the Cache.
func (c *Cache) Path(e *FileEntry) string {
	return string(c.pool[e.NameOffset : e.NameOffset+uint32(e.NameLen)])
}

// normalizeQuery maps a lookup path onto the index's canonical form.
func normalizeQuery(path string) string {
	path = strings.ToLower(path)
	return strings.ReplaceAll(path, string(wrongSeparator), string(pathSeparator))
}

// FindEntry looks up a file by path. The lookup is case-insensitive and
// accepts either separator. Returns nil when the index was built in
// FilenamesAsCrc32 mode; use FindEntryByCRC then.
func (c *Cache) FindEntry(path string) *FileEntry {
	if c.crcMap != nil {
		return nil
	}
	return c.root.find(normalizeQuery(path))
}

// FindEntryByCRC looks up a file by the CRC32 of its normalized path. Works
// in every mode; in FilenamesAsCrc32 mode it is the only lookup available.
func (c *Cache) FindEntryByCRC(path string) *FileEntry {
	sum := crc32.ChecksumIEEE([]byte(normalizeQuery(path)))
	if c.crcMap != nil {
		return c.crcMap[sum]
	}

	var found *FileEntry
	_ = c.root.walk("", func(p string, e *FileEntry) error {
		if crc32.ChecksumIEEE([]byte(p)) == sum {
			found = e
			return errStopWalk
		}
		return nil
	})
	return found
}

var errStopWalk = errors.New("stop walk")

// Walk visits every file entry in sorted order with its normalized path.
func (c *Cache) Walk(fn func(path string, e *FileEntry) error) error {
	if c.crcMap != nil {
		entries := make([]*FileEntry, 0, len(c.crcMap))
		for _, e := range c.crcMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return c.Path(entries[i]) < c.Path(entries[j])
		})
		for _, e := range entries {
			if err := fn(c.Path(e), e); err != nil {
				return err
			}
		}
		return nil
	}
	return c.root.walk("", fn)
}

// FreeSpaceAfter returns how many bytes past the entry's payload may be
// written without disturbing other data, as established by the post-parse
// sweep.
func (c *Cache) FreeSpaceAfter(e *FileEntry) uint32 {
	if e.FreeEnd < e.EOFOffset {
		return 0
	}
	return e.FreeEnd - e.EOFOffset
}

// ReadFile reads and decompresses one entry's payload, checking its CRC32.
// Only STORE and DEFLATE payloads can be materialized; encrypted methods are
// identified but not executed here.
func (c *Cache) ReadFile(e *FileEntry) ([]byte, error) {
	switch e.Method {
	case zipfile.MethodStore, zipfile.MethodDeflate:
	default:
		return nil, zderr(Unsupported, "cannot read %q: compression method %d", c.Path(e), e.Method)
	}

	s := stream{src: c.file}
	if err := s.seek(int64(e.DataOffset)); err != nil {
		return nil, err
	}

	compressed := make([]byte, e.CompressedSize)
	if err := s.read(compressed); err != nil {
		return nil, err
	}

	uncompressed := compressed
	if e.Method == zipfile.MethodDeflate {
		var err error
		if uncompressed, err = inflateRaw(compressed, int(e.UncompressedSize)); err != nil {
			return nil, err
		}
	}

	if len(uncompressed) != int(e.UncompressedSize) {
		return nil, zderr(CorruptedData, "%q decompressed to %d bytes, expected %d", c.Path(e), len(uncompressed), e.UncompressedSize)
	}

	if crc32.ChecksumIEEE(uncompressed) != e.CRC32 {
		return nil, zderr(Crc32Check, "uncompressed stream CRC32 check failed for %q", c.Path(e))
	}

	return uncompressed, nil
}

// WriteEmptyArchive writes a bare EOCD so that a freshly created pak is a
// valid empty archive on disk, and clears the dirty flag. Only meaningful on
// a Cache produced in create mode.
func (c *Cache) WriteEmptyArchive() error {
	if c.flags&CacheReadOnly != 0 {
		return zderr(Unsupported, "archive is read-only")
	}

	w, ok := c.file.(io.WriteSeeker)
	if !ok {
		return zderr(Unexpected, "archive stream is not writable")
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return zdwrap(IoFailed, err, "seek to start")
	}

	eocd := zipfile.EOCD{Signature: zipfile.EOCDSignature}
	if _, err := w.Write(eocd.Encode(make([]byte, 0, zipfile.EOCDLen))); err != nil {
		return zdwrap(IoFailed, err, "write empty CDR end")
	}

	if t, ok := c.file.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(zipfile.EOCDLen); err != nil {
			return zdwrap(IoFailed, err, "truncate")
		}
	}

	c.flags &^= CacheCdrDirty
	return nil
}

// Close releases the file handle, the string pool, and the tree together.
func (c *Cache) Close() error {
	var err error
	if closer, ok := c.file.(io.Closer); ok {
		err = closer.Close()
	}

	c.file = nil
	c.pool = nil
	c.root = newTree()
	c.crcMap = nil
	c.entries = nil
	return err
}
