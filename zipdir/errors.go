package zipdir

import "fmt"

// Kind classifies every failure the factory can report. Kinds are themselves
// errors so that callers can match with errors.Is:
//
//	if _, err := f.Open(name); errors.Is(err, zipdir.NoCdr) { ... }
type Kind int

const (
	// IoFailed wraps any failure of the underlying byte stream.
	IoFailed Kind = iota + 1
	// NoCdr means no end-of-central-directory record was found; the file is
	// either not an archive or has lost its directory.
	NoCdr
	// DataCorrupt covers structural inconsistencies outside the CDR itself:
	// comment length mismatches, bad trailers, out-of-range directory bounds.
	DataCorrupt
	// Unsupported covers well-formed archives the reader refuses: multivolume,
	// over the size cap, needs-version above 2.0, exotic compression methods
	// in validate mode.
	Unsupported
	// CdrCorrupt means the central directory stream itself is damaged or
	// truncated.
	CdrCorrupt
	// NoMemory means the CDR buffer could not be allocated.
	NoMemory
	// CorruptedData means entry payload did not survive round-tripping: the
	// CDR could not be read in full, or validate-mode decompression produced
	// the wrong number of bytes.
	CorruptedData
	// ValidationFailed means a CDR entry disagrees with its local file header.
	ValidationFailed
	// ZlibOom, ZlibCorrupted and ZlibFailed map decompressor failures in
	// validate mode. ZlibOom is retained for compatibility with archives
	// produced on constrained targets; the Go inflater signals allocation
	// failure by panicking instead, so it is never returned in practice.
	ZlibOom
	ZlibCorrupted
	ZlibFailed
	// Crc32Check means validate-mode decompression succeeded but the CRC32 of
	// the output does not match the directory.
	Crc32Check
	// Unexpected marks program-flow impossibilities. Seeing it is a bug.
	Unexpected
)

func (k Kind) String() string {
	switch k {
	case IoFailed:
		return "io failed"
	case NoCdr:
		return "no central directory"
	case DataCorrupt:
		return "data is corrupt"
	case Unsupported:
		return "unsupported"
	case CdrCorrupt:
		return "central directory is corrupt"
	case NoMemory:
		return "no memory"
	case CorruptedData:
		return "corrupted data"
	case ValidationFailed:
		return "validation failed"
	case ZlibOom:
		return "zlib out of memory"
	case ZlibCorrupted:
		return "zlib corrupted data"
	case ZlibFailed:
		return "zlib failed"
	case Crc32Check:
		return "crc32 check failed"
	case Unexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) Error() string {
	return "zipdir: " + k.String()
}

// Error is the tagged failure returned by the factory. Msg describes the
// specific check that failed; Err, when non-nil, is the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := "zipdir: " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the receiver's Kind, letting errors.Is match
// against the Kind sentinels.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func zderr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func zdwrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
