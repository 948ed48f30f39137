// Package zipfile describes the on-disk layout of a pak archive: the standard
// PKZIP records plus the vendor trailer records that may occupy the archive
// comment area to declare encryption and signing of the central directory.
//
// All records are little-endian. Decoding is done by hand with encoding/binary
// because the records are tiny, fixed-layout, and the surrounding code wants to
// control exactly how many bytes are consumed.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format) for the standard records.
package zipfile

import (
	"encoding/binary"
)

// Record signatures.
const (
	LocalHeaderSignature uint32 = 0x04034b50
	CDRHeaderSignature   uint32 = 0x02014b50
	EOCDSignature        uint32 = 0x06054b50
)

// Fixed record lengths, excluding the variable-length name/extra/comment areas.
const (
	LocalHeaderLen = 30
	CDRHeaderLen   = 46
	EOCDLen        = 22
)

// Compression methods. Values above Deflate are vendor extensions; the
// streamcipher variants mark entries whose payload is encrypted in addition to
// (or instead of) being compressed.
const (
	MethodStore                          uint16 = 0
	MethodDeflate                        uint16 = 8
	MethodDeflateAndEncrypt              uint16 = 11
	MethodDeflateAndStreamcipher         uint16 = 12
	MethodStoreAndStreamcipherKeytable   uint16 = 13
	MethodDeflateAndStreamcipherKeytable uint16 = 14
)

// MaxNeedsVersion is the highest version-needed-to-extract (low byte) that the
// reader accepts. 20 corresponds to PKZIP 2.0.
const MaxNeedsVersion = 20

// Extra field header IDs recognized when walking the per-entry TLV area.
const (
	ExtraNTFS uint16 = 0x000A
)

// ExtraFieldHeaderLen is the fixed [headerID, dataSize] preamble of each
// extra field.
const ExtraFieldHeaderLen = 4

// EOCD is the end-of-central-directory record.
//
// The top two bits of Disk are not part of the standard: legacy pak tools used
// them to declare header encryption. DecodeEOCD leaves them in place; callers
// extract them with LegacyEncryption and mask with ClearLegacyEncryption.
type EOCD struct {
	Signature     uint32
	Disk          uint16
	CDRStartDisk  uint16
	EntriesOnDisk uint16
	EntriesTotal  uint16
	CDRSize       uint32
	CDROffset     uint32
	CommentLength uint16
}

// DecodeEOCD decodes an EOCD from the first EOCDLen bytes of b.
func DecodeEOCD(b []byte) EOCD {
	return EOCD{
		Signature:     binary.LittleEndian.Uint32(b[0:4]),
		Disk:          binary.LittleEndian.Uint16(b[4:6]),
		CDRStartDisk:  binary.LittleEndian.Uint16(b[6:8]),
		EntriesOnDisk: binary.LittleEndian.Uint16(b[8:10]),
		EntriesTotal:  binary.LittleEndian.Uint16(b[10:12]),
		CDRSize:       binary.LittleEndian.Uint32(b[12:16]),
		CDROffset:     binary.LittleEndian.Uint32(b[16:20]),
		CommentLength: binary.LittleEndian.Uint16(b[20:22]),
	}
}

// Encode appends the EOCDLen-byte wire form of e to dst and returns the
// extended slice.
func (e EOCD) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, e.Signature)
	dst = binary.LittleEndian.AppendUint16(dst, e.Disk)
	dst = binary.LittleEndian.AppendUint16(dst, e.CDRStartDisk)
	dst = binary.LittleEndian.AppendUint16(dst, e.EntriesOnDisk)
	dst = binary.LittleEndian.AppendUint16(dst, e.EntriesTotal)
	dst = binary.LittleEndian.AppendUint32(dst, e.CDRSize)
	dst = binary.LittleEndian.AppendUint32(dst, e.CDROffset)
	dst = binary.LittleEndian.AppendUint16(dst, e.CommentLength)
	return dst
}

// LegacyEncryption returns the encryption type packed into bits 14-15 of Disk.
func (e EOCD) LegacyEncryption() EncryptionType {
	return EncryptionType((e.Disk & 0xC000) >> 14)
}

// ClearLegacyEncryption masks the legacy encryption bits out of Disk so that
// the remaining value is the real disk number.
func (e *EOCD) ClearLegacyEncryption() {
	e.Disk &= 0x3FFF
}

// DataDescriptor is the CRC/size triple shared by the local and central
// headers. The two copies must agree for an archive to be consistent.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
}

// CDRHeader is one file header in the central directory stream. It is followed
// by NameLen bytes of name, ExtraLen bytes of extra fields, and CommentLen
// bytes of comment.
type CDRHeader struct {
	Signature         uint32
	CreatorVersion    uint16
	NeedsVersion      uint16
	Flags             uint16
	Method            uint16
	ModTime           uint16
	ModDate           uint16
	Desc              DataDescriptor
	NameLen           uint16
	ExtraLen          uint16
	CommentLen        uint16
	DiskStart         uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint32
}

// DecodeCDRHeader decodes a CDRHeader from the first CDRHeaderLen bytes of b.
func DecodeCDRHeader(b []byte) CDRHeader {
	return CDRHeader{
		Signature:      binary.LittleEndian.Uint32(b[0:4]),
		CreatorVersion: binary.LittleEndian.Uint16(b[4:6]),
		NeedsVersion:   binary.LittleEndian.Uint16(b[6:8]),
		Flags:          binary.LittleEndian.Uint16(b[8:10]),
		Method:         binary.LittleEndian.Uint16(b[10:12]),
		ModTime:        binary.LittleEndian.Uint16(b[12:14]),
		ModDate:        binary.LittleEndian.Uint16(b[14:16]),
		Desc: DataDescriptor{
			CRC32:            binary.LittleEndian.Uint32(b[16:20]),
			CompressedSize:   binary.LittleEndian.Uint32(b[20:24]),
			UncompressedSize: binary.LittleEndian.Uint32(b[24:28]),
		},
		NameLen:           binary.LittleEndian.Uint16(b[28:30]),
		ExtraLen:          binary.LittleEndian.Uint16(b[30:32]),
		CommentLen:        binary.LittleEndian.Uint16(b[32:34]),
		DiskStart:         binary.LittleEndian.Uint16(b[34:36]),
		InternalAttrs:     binary.LittleEndian.Uint16(b[36:38]),
		ExternalAttrs:     binary.LittleEndian.Uint32(b[38:42]),
		LocalHeaderOffset: binary.LittleEndian.Uint32(b[42:46]),
	}
}

// Encode appends the fixed CDRHeaderLen-byte portion of h to dst. The caller
// appends name, extra, and comment bytes itself.
func (h CDRHeader) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Signature)
	dst = binary.LittleEndian.AppendUint16(dst, h.CreatorVersion)
	dst = binary.LittleEndian.AppendUint16(dst, h.NeedsVersion)
	dst = binary.LittleEndian.AppendUint16(dst, h.Flags)
	dst = binary.LittleEndian.AppendUint16(dst, h.Method)
	dst = binary.LittleEndian.AppendUint16(dst, h.ModTime)
	dst = binary.LittleEndian.AppendUint16(dst, h.ModDate)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.CRC32)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.CompressedSize)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.UncompressedSize)
	dst = binary.LittleEndian.AppendUint16(dst, h.NameLen)
	dst = binary.LittleEndian.AppendUint16(dst, h.ExtraLen)
	dst = binary.LittleEndian.AppendUint16(dst, h.CommentLen)
	dst = binary.LittleEndian.AppendUint16(dst, h.DiskStart)
	dst = binary.LittleEndian.AppendUint16(dst, h.InternalAttrs)
	dst = binary.LittleEndian.AppendUint32(dst, h.ExternalAttrs)
	dst = binary.LittleEndian.AppendUint32(dst, h.LocalHeaderOffset)
	return dst
}

// LocalHeader is the per-entry preamble stored alongside the payload. It is
// followed by NameLen bytes of name and ExtraLen bytes of extra fields, after
// which the payload starts.
type LocalHeader struct {
	Signature    uint32
	NeedsVersion uint16
	Flags        uint16
	Method       uint16
	ModTime      uint16
	ModDate      uint16
	Desc         DataDescriptor
	NameLen      uint16
	ExtraLen     uint16
}

// DecodeLocalHeader decodes a LocalHeader from the first LocalHeaderLen bytes
// of b.
func DecodeLocalHeader(b []byte) LocalHeader {
	return LocalHeader{
		Signature:    binary.LittleEndian.Uint32(b[0:4]),
		NeedsVersion: binary.LittleEndian.Uint16(b[4:6]),
		Flags:        binary.LittleEndian.Uint16(b[6:8]),
		Method:       binary.LittleEndian.Uint16(b[8:10]),
		ModTime:      binary.LittleEndian.Uint16(b[10:12]),
		ModDate:      binary.LittleEndian.Uint16(b[12:14]),
		Desc: DataDescriptor{
			CRC32:            binary.LittleEndian.Uint32(b[14:18]),
			CompressedSize:   binary.LittleEndian.Uint32(b[18:22]),
			UncompressedSize: binary.LittleEndian.Uint32(b[22:26]),
		},
		NameLen:  binary.LittleEndian.Uint16(b[26:28]),
		ExtraLen: binary.LittleEndian.Uint16(b[28:30]),
	}
}

// Encode appends the fixed LocalHeaderLen-byte portion of h to dst.
func (h LocalHeader) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Signature)
	dst = binary.LittleEndian.AppendUint16(dst, h.NeedsVersion)
	dst = binary.LittleEndian.AppendUint16(dst, h.Flags)
	dst = binary.LittleEndian.AppendUint16(dst, h.Method)
	dst = binary.LittleEndian.AppendUint16(dst, h.ModTime)
	dst = binary.LittleEndian.AppendUint16(dst, h.ModDate)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.CRC32)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.CompressedSize)
	dst = binary.LittleEndian.AppendUint32(dst, h.Desc.UncompressedSize)
	dst = binary.LittleEndian.AppendUint16(dst, h.NameLen)
	dst = binary.LittleEndian.AppendUint16(dst, h.ExtraLen)
	return dst
}

// NTFSModTime extracts the NTFS last-modify time from an EXTRA_NTFS data area
// (the bytes after the [headerID, dataSize] preamble). The layout is a 4-byte
// reserved word followed by attribute TLVs; the first attribute carries the
// mtime as a 64-bit count of 100ns intervals since 1601-01-01.
//
// Returns 0 and false if the data area is too short to hold the attribute.
func NTFSModTime(data []byte) (uint64, bool) {
	// reserved u32 + attribute tag u16 + attribute size u16 = 8 bytes,
	// then the 8-byte mtime.
	if len(data) < 16 {
		return 0, false
	}

	return binary.LittleEndian.Uint64(data[8:16]), true
}
