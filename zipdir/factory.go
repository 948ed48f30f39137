// Package zipdir opens pak archives and builds the in-memory directory index
// that random-access reads are served from. The entry point is Factory: it
// locates the end-of-central-directory record with a backwards window scan,
// decodes the vendor trailers overlaying the comment area, parses the central
// directory into a single string-pool buffer, cross-checks entries against
// their local file headers, and hands the finished index over as a Cache. On
// any failure the factory cleans up after itself and no partial Cache escapes.
package zipdir

import (
	"io"
	"log"
	"os"

	"github.com/dbuckler300/o3de/zipfile"
)

// InitMethod controls how aggressively entries are checked while the index is
// built.
type InitMethod int

const (
	// InitDefault reads each entry's local file header and cross-checks it
	// against the central directory record.
	InitDefault InitMethod = iota
	// InitFull trusts the central directory and derives payload offsets from
	// it without touching the local headers.
	InitFull
	// InitValidate additionally decompresses every entry and checks its CRC32.
	InitValidate
)

// Flag adjusts factory behavior.
type Flag uint32

const (
	// FlagReadOnly opens the archive for reading only.
	FlagReadOnly Flag = 1 << iota
	// FlagCreateNew truncates or creates the archive instead of reading it.
	FlagCreateNew
	// FlagDontCompact is mirrored onto the Cache for downstream writers.
	FlagDontCompact
	// FlagDontMemorizeZipPath leaves the path field on the Cache empty.
	FlagDontMemorizeZipPath
	// FlagFilenamesAsCrc32 switches the directory tree off and builds only a
	// name-hash-to-entry map. Lookups then go through Cache.FindEntryByCRC.
	FlagFilenamesAsCrc32
	// FlagReadInsidePak routes file opening through Options.VFS instead of
	// the local filesystem, for archives nested inside other archives.
	FlagReadInsidePak
)

// Options customises NewFactory.
type Options struct {
	// Logger receives format-diagnostic warnings while the archive is read.
	// Nil means silent; errors are reported through return values either way.
	Logger *log.Logger

	// VFS is consulted instead of the local filesystem when FlagReadInsidePak
	// is set. The opened file must support seeking.
	VFS interface {
		Open(name string) (io.ReadSeeker, error)
	}

	// DecryptCDR, when non-nil, is invoked on the raw CDR bytes before
	// parsing. The default is a no-op; archives that declare header
	// encryption cannot be opened without a hook.
	DecryptCDR func([]byte) error

	// EntryHook is invoked once per file entry as it is accepted into the
	// index, with the normalized path. Useful for progress reporting during
	// validate-mode opens.
	EntryHook func(path string)
}

// Factory builds a Cache from an archive file. A Factory is a transient,
// single-threaded builder: create one, call Open (or OpenReader) once, let it
// go.
type Factory struct {
	initMethod InitMethod
	flags      Flag
	opts       Options
}

// NewFactory returns a factory using the given init method and flags.
func NewFactory(initMethod InitMethod, flags Flag, optFns ...func(*Options)) *Factory {
	f := &Factory{
		initMethod: initMethod,
		flags:      flags,
	}
	for _, fn := range optFns {
		fn(&f.opts)
	}
	return f
}

// Open opens the named archive and builds its index. Depending on flags the
// file is opened read-only, read-write (falling through to creation when the
// file is missing or empty), or created anew. The returned Cache owns the file
// handle; on error nothing is returned and the factory has closed whatever it
// opened.
func (f *Factory) Open(name string) (*Cache, error) {
	c := &Cache{
		root: newTree(),
	}
	if f.flags&FlagDontMemorizeZipPath == 0 {
		c.path = name
	}
	if f.flags&FlagDontCompact != 0 {
		c.flags |= CacheDontCompact
	}

	if f.flags&FlagReadInsidePak != 0 {
		if f.opts.VFS == nil {
			return nil, zderr(Unexpected, "FlagReadInsidePak set without a VFS")
		}

		src, err := f.opts.VFS.Open(name)
		if err != nil {
			return nil, zdwrap(IoFailed, err, "could not open %q inside pak", name)
		}

		c.flags |= CacheCdrDirty | CacheReadOnly
		if err = f.readCache(c, src); err != nil {
			closeIfCloser(src)
			return nil, err
		}

		c.file = src
		return c, nil
	}

	if f.flags&FlagReadOnly != 0 {
		fd, err := os.Open(name)
		if err != nil {
			return nil, zdwrap(IoFailed, err, "could not open %q in binary mode for reading", name)
		}

		c.flags |= CacheCdrDirty | CacheReadOnly
		if err = f.readCache(c, fd); err != nil {
			_ = fd.Close()
			return nil, err
		}

		c.file = fd
		return c, nil
	}

	var fd *os.File
	if f.flags&FlagCreateNew == 0 {
		// errors here just mean there is nothing to read; fall through to
		// creation.
		fd, _ = os.OpenFile(name, os.O_RDWR, 0o644)
	}

	openForWriting := true
	if fd != nil {
		fi, err := fd.Stat()
		if err != nil {
			_ = fd.Close()
			return nil, zdwrap(IoFailed, err, "could not stat %q", name)
		}

		// a zero-byte file is treated the same as a missing one.
		if fi.Size() != 0 {
			if err = f.readCache(c, fd); err != nil {
				_ = fd.Close()
				return nil, err
			}
			openForWriting = false
		}
	}

	if openForWriting {
		if fd != nil {
			_ = fd.Close()
		}

		var err error
		if fd, err = os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644); err != nil {
			return nil, zdwrap(IoFailed, err, "could not open %q in binary mode for appending", name)
		}

		// no directory yet; it will be written out at the first flush.
		c.cdrOffset = 0
		c.flags |= CacheCdrDirty
	}

	c.file = fd
	return c, nil
}

// OpenReader builds a read-only Cache over an arbitrary random-access byte
// stream, such as an archive resident in object storage. The Cache takes
// ownership of src; if src implements io.Closer, Cache.Close closes it.
func (f *Factory) OpenReader(src io.ReadSeeker) (*Cache, error) {
	c := &Cache{
		root:  newTree(),
		flags: CacheCdrDirty | CacheReadOnly,
	}
	if f.flags&FlagDontCompact != 0 {
		c.flags |= CacheDontCompact
	}

	if err := f.readCache(c, src); err != nil {
		return nil, err
	}

	c.file = src
	return c, nil
}

// readCache reads the archive directory from src and moves the finished index
// into c. The buffer holding the CDR is transferred along with the tree that
// borrows from it.
func (f *Factory) readCache(c *Cache, src io.ReadSeeker) error {
	r := reader{
		s:          stream{src: src},
		initMethod: f.initMethod,
		opts:       &f.opts,
		root:       newTree(),
	}
	if f.flags&FlagFilenamesAsCrc32 != 0 {
		r.crcMap = make(map[uint32]*FileEntry)
	}

	if err := r.prepare(); err != nil {
		return err
	}

	// since the archive may be open for writing we need to know exactly how
	// much room each file has to grow in place.
	refreshEOFOffsets(r.entries, r.eocd.CDROffset)

	c.root = r.root
	c.crcMap = r.crcMap
	c.pool = r.pool
	c.entries = r.entries

	// this offset is what makes appending to the archive possible.
	c.cdrOffset = r.eocd.CDROffset
	c.eocdPos = r.eocdPos

	c.encryptedHeaders = r.encryptedHeaders
	c.signedHeaders = r.signedHeaders
	c.headerExtended = r.headerExtended
	c.headerEncryption = r.headerEncryption
	c.headerSignature = r.headerSignature

	return nil
}

// reader holds the transient state of one archive read.
type reader struct {
	s          stream
	initMethod InitMethod
	opts       *Options

	size    int64
	eocd    zipfile.EOCD
	eocdPos int64

	encryptedHeaders zipfile.EncryptionType
	signedHeaders    zipfile.SignatureType
	headerExtended   zipfile.ExtendedTrailer
	headerEncryption zipfile.EncryptionTrailer
	headerSignature  zipfile.SignatureTrailer

	// pool is the CDR buffer doubling as the string pool for entry names.
	pool    []byte
	root    *Tree
	crcMap  map[uint32]*FileEntry
	entries []*FileEntry
}

// prepare locates and checks the directory, then parses it.
func (r *reader) prepare() error {
	var err error
	if r.size, err = r.s.size(); err != nil {
		return err
	}

	if err = r.findCDREnd(); err != nil {
		return err
	}

	if err = r.decodeTrailers(); err != nil {
		return err
	}

	// multivolume archives are not supported.
	if r.eocd.Disk != 0 || r.eocd.CDRStartDisk != 0 || r.eocd.EntriesOnDisk != r.eocd.EntriesTotal {
		return zderr(Unsupported, "multivolume archive detected")
	}

	// if the central directory offset or size are out of range, the EOCD
	// record is probably corrupt.
	if int64(r.eocd.CDROffset) > r.eocdPos ||
		int64(r.eocd.CDRSize) > r.eocdPos ||
		int64(r.eocd.CDROffset)+int64(r.eocd.CDRSize) > r.eocdPos {
		return zderr(DataCorrupt, "central directory offset or size out of range (offset=%d size=%d eocd=%d)",
			r.eocd.CDROffset, r.eocd.CDRSize, r.eocdPos)
	}

	return r.buildEntries()
}

func (r *reader) warnf(format string, args ...any) {
	if r.opts.Logger != nil {
		r.opts.Logger.Printf(format, args...)
	}
}

func closeIfCloser(src io.ReadSeeker) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
