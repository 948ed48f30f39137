package zipdir

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"

	"github.com/dbuckler300/o3de/zipfile"
)

// testFile describes one entry of a synthetic archive.
type testFile struct {
	name string
	data []byte

	method uint16
	// localName overrides the name written into the local file header.
	localName string
	// localExtra is written into the local header's extra area only.
	localExtra []byte
	// ntfsTime, when nonzero, is emitted as an EXTRA_NTFS field in the CDR.
	ntfsTime uint64
	// corruptPayload clobbers the payload's first byte after everything is
	// sized. The value picked is a reserved DEFLATE block type, so corrupted
	// deflate streams fail immediately rather than decoding garbage.
	corruptPayload bool
	// localMethod overrides the method in the local header.
	localMethod *uint16
}

// testArchive hand-crafts archive bytes record by record so that tests can
// bend every field the reader checks.
type testArchive struct {
	files []testFile
	// dirs are directory entries (trailing separator) added to the CDR only.
	dirs []string
	// comment is appended verbatim after the EOCD.
	comment []byte
	// commentLenDelta skews the declared comment length.
	commentLenDelta int
	disk            uint16
	cdrStartDisk    uint16
	entriesDelta    int
	needsVersion    uint16
	// appendTail is appended after the comment without being declared.
	appendTail []byte
}

func (a testArchive) build(t *testing.T) []byte {
	t.Helper()

	needs := a.needsVersion
	if needs == 0 {
		needs = 20
	}

	type built struct {
		f    testFile
		lho  uint32
		desc zipfile.DataDescriptor
	}

	var buf bytes.Buffer
	bs := make([]built, 0, len(a.files))
	for _, f := range a.files {
		comp := f.data
		if f.method == zipfile.MethodDeflate {
			var cb bytes.Buffer
			fw, err := flate.NewWriter(&cb, flate.DefaultCompression)
			require.NoError(t, err)
			_, err = fw.Write(f.data)
			require.NoError(t, err)
			require.NoError(t, fw.Close())
			comp = cb.Bytes()
		}

		desc := zipfile.DataDescriptor{
			CRC32:            crc32.ChecksumIEEE(f.data),
			CompressedSize:   uint32(len(comp)),
			UncompressedSize: uint32(len(f.data)),
		}

		localName := f.localName
		if localName == "" {
			localName = f.name
		}

		method := f.method
		if f.localMethod != nil {
			method = *f.localMethod
		}

		lho := uint32(buf.Len())
		lh := zipfile.LocalHeader{
			Signature:    zipfile.LocalHeaderSignature,
			NeedsVersion: needs,
			Method:       method,
			Desc:         desc,
			NameLen:      uint16(len(localName)),
			ExtraLen:     uint16(len(f.localExtra)),
		}
		buf.Write(lh.Encode(nil))
		buf.WriteString(localName)
		buf.Write(f.localExtra)

		payloadStart := buf.Len()
		buf.Write(comp)
		if f.corruptPayload {
			buf.Bytes()[payloadStart] = 0x06
		}

		bs = append(bs, built{f: f, lho: lho, desc: desc})
	}

	cdrOffset := uint32(buf.Len())
	for _, b := range bs {
		extra := ntfsExtra(b.f.ntfsTime)
		h := zipfile.CDRHeader{
			Signature:         zipfile.CDRHeaderSignature,
			NeedsVersion:      needs,
			Method:            b.f.method,
			Desc:              b.desc,
			NameLen:           uint16(len(b.f.name)),
			ExtraLen:          uint16(len(extra)),
			LocalHeaderOffset: b.lho,
		}
		buf.Write(h.Encode(nil))
		buf.WriteString(b.f.name)
		buf.Write(extra)
	}
	for _, d := range a.dirs {
		h := zipfile.CDRHeader{
			Signature:    zipfile.CDRHeaderSignature,
			NeedsVersion: needs,
			NameLen:      uint16(len(d)),
		}
		buf.Write(h.Encode(nil))
		buf.WriteString(d)
	}
	cdrSize := uint32(buf.Len()) - cdrOffset

	n := uint16(len(a.files) + len(a.dirs) + a.entriesDelta)
	eocd := zipfile.EOCD{
		Signature:     zipfile.EOCDSignature,
		Disk:          a.disk,
		CDRStartDisk:  a.cdrStartDisk,
		EntriesOnDisk: n,
		EntriesTotal:  n,
		CDRSize:       cdrSize,
		CDROffset:     cdrOffset,
		CommentLength: uint16(len(a.comment) + a.commentLenDelta),
	}
	buf.Write(eocd.Encode(nil))
	buf.Write(a.comment)
	buf.Write(a.appendTail)

	return buf.Bytes()
}

// ntfsExtra encodes an EXTRA_NTFS field carrying the given mtime, or nil when
// ft is zero.
func ntfsExtra(ft uint64) []byte {
	if ft == 0 {
		return nil
	}

	b := make([]byte, 0, 4+24)
	b = binary.LittleEndian.AppendUint16(b, zipfile.ExtraNTFS)
	b = binary.LittleEndian.AppendUint16(b, 16) // reserved + one attribute
	b = binary.LittleEndian.AppendUint32(b, 0)  // reserved
	b = binary.LittleEndian.AppendUint16(b, 1)  // attribute: mtime
	b = binary.LittleEndian.AppendUint16(b, 8)
	b = binary.LittleEndian.AppendUint64(b, ft)
	return b
}

// extendedTrailer encodes a vendor trailer area declaring the given
// techniques, including the dependent trailers.
func extendedTrailer(enc zipfile.EncryptionType, sig zipfile.SignatureType) []byte {
	b := zipfile.ExtendedTrailer{
		HeaderSize: zipfile.ExtendedTrailerLen,
		Encryption: enc,
		Signing:    sig,
	}.Encode(nil)

	if enc == zipfile.EncryptedStreamcipherKeytable {
		b = binary.LittleEndian.AppendUint16(b, zipfile.EncryptionTrailerLen)
		b = append(b, make([]byte, zipfile.EncryptionTrailerLen-2)...)
	}
	if sig == zipfile.CDRSigned {
		b = binary.LittleEndian.AppendUint16(b, zipfile.SignatureTrailerLen)
		b = append(b, make([]byte, zipfile.SignatureTrailerLen-2)...)
	}
	return b
}

// openBytes runs the factory over in-memory archive bytes.
func openBytes(t *testing.T, data []byte, method InitMethod, flags Flag, optFns ...func(*Options)) (*Cache, error) {
	t.Helper()
	return NewFactory(method, flags, optFns...).OpenReader(bytes.NewReader(data))
}
