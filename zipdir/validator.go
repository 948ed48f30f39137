package zipdir

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/valyala/bytebufferpool"

	"github.com/dbuckler300/o3de/zipfile"
)

// initDataOffset determines where the entry's payload actually starts.
//
// With encrypted headers, or in InitFull mode, the offset is derived from the
// central directory alone: the pak tool guarantees encrypted archives carry no
// extra data in their local headers, so only the name length is added.
// Otherwise the local file header is read back and must agree with the
// directory record before its own lengths are trusted.
func (r *reader) initDataOffset(e *FileEntry, hdr *zipfile.CDRHeader, name []byte) error {
	if r.encryptedHeaders != zipfile.NotEncrypted || r.initMethod >= InitFull {
		e.DataOffset = hdr.LocalHeaderOffset + zipfile.LocalHeaderLen + uint32(hdr.NameLen)
	} else {
		if err := r.s.seek(int64(hdr.LocalHeaderOffset)); err != nil {
			return err
		}

		bb := bytebufferpool.Get()
		defer bytebufferpool.Put(bb)

		n := zipfile.LocalHeaderLen + int(hdr.NameLen)
		if _, err := bb.ReadFrom(io.LimitReader(r.s.src, int64(n))); err != nil || len(bb.B) < n {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return zdwrap(IoFailed, err, "read local file header of %q", name)
		}

		local := zipfile.DecodeLocalHeader(bb.B)
		if local.Desc != hdr.Desc || local.Method != hdr.Method || local.NameLen != hdr.NameLen {
			return zderr(ValidationFailed, "the local file header of %q does not match the central directory record", name)
		}

		// the local name must match the directory name; case differences are
		// tolerated since the index is case-normalized anyway.
		if !bytes.EqualFold(bb.B[zipfile.LocalHeaderLen:n], name) {
			return zderr(ValidationFailed, "the local file header of %q carries a different file name", name)
		}

		e.DataOffset = hdr.LocalHeaderOffset + zipfile.LocalHeaderLen + uint32(local.NameLen) + uint32(local.ExtraLen)
	}

	e.EOFOffset = e.DataOffset + e.CompressedSize

	if int64(e.DataOffset) >= r.eocdPos {
		return zderr(ValidationFailed, "%q declares a payload crossing the archive boundaries", name)
	}

	if r.initMethod >= InitValidate {
		return r.validate(e, name)
	}

	return nil
}

// validate reads the entry's payload, decompresses it, and checks the CRC32
// against the directory. Diagnostic mode only; a pak that fails here is
// damaged even though its directory was readable.
func (r *reader) validate(e *FileEntry, name []byte) error {
	if err := r.s.seek(int64(e.DataOffset)); err != nil {
		return err
	}

	compressed := make([]byte, e.CompressedSize)
	if err := r.s.read(compressed); err != nil {
		return err
	}

	var uncompressed []byte
	switch e.Method {
	case zipfile.MethodStore:
		uncompressed = compressed
	case zipfile.MethodDeflate:
		var err error
		if uncompressed, err = inflateRaw(compressed, int(e.UncompressedSize)); err != nil {
			return err
		}
	default:
		return zderr(Unsupported, "cannot validate %q: compression method %d", name, e.Method)
	}

	if len(uncompressed) != int(e.UncompressedSize) {
		return zderr(CorruptedData, "%q decompressed to %d bytes, expected %d", name, len(uncompressed), e.UncompressedSize)
	}

	if crc32.ChecksumIEEE(uncompressed) != e.CRC32 {
		return zderr(Crc32Check, "uncompressed stream CRC32 check failed for %q", name)
	}

	return nil
}

// inflateRaw decompresses a raw DEFLATE stream. One byte more than expected is
// requested so that an oversized stream is detected instead of silently
// truncated.
func inflateRaw(compressed []byte, expected int) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()

	out, err := io.ReadAll(io.LimitReader(fr, int64(expected)+1))
	if err != nil {
		var corrupt flate.CorruptInputError
		switch {
		case errors.As(err, &corrupt), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, zdwrap(ZlibCorrupted, err, "compressed stream error")
		default:
			return nil, zdwrap(ZlibFailed, err, "decompressor reported an unexpected error")
		}
	}

	return out, nil
}
