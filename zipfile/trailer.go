package zipfile

import (
	"encoding/binary"
)

// EncryptionType declares how the archive headers are encrypted. The legacy
// encoding lives in bits 14-15 of the EOCD disk number; newer archives declare
// it in the ExtendedTrailer instead. Declaring it in both places is a format
// error.
type EncryptionType uint16

const (
	NotEncrypted EncryptionType = iota
	EncryptedStreamcipher
	EncryptedTEA
	EncryptedStreamcipherKeytable
)

func (t EncryptionType) String() string {
	switch t {
	case NotEncrypted:
		return "none"
	case EncryptedStreamcipher:
		return "streamcipher"
	case EncryptedTEA:
		return "tea"
	case EncryptedStreamcipherKeytable:
		return "streamcipher-keytable"
	default:
		return "unknown"
	}
}

// SignatureType declares whether the central directory is signed.
type SignatureType uint16

const (
	NotSigned SignatureType = iota
	CDRSigned
)

func (t SignatureType) String() string {
	switch t {
	case NotSigned:
		return "none"
	case CDRSigned:
		return "cdr-signed"
	default:
		return "unknown"
	}
}

// Trailer record lengths. The trailers overlay the EOCD comment area in the
// order extended, encryption, signature; their combined length must equal the
// EOCD comment length exactly.
const (
	ExtendedTrailerLen   = 6
	EncryptionTrailerLen = 2 + EncryptionBlockKeyLen + EncryptionKeyTableSize*EncryptionBlockKeyLen
	SignatureTrailerLen  = 2 + SignatureLen
)

// Cipher and signature geometry.
const (
	EncryptionBlockKeyLen  = 16
	EncryptionKeyTableSize = 16
	SignatureLen           = 128
)

// ExtendedTrailer declares which of the other trailers follow it. HeaderSize
// is a self-length sanity field and must equal ExtendedTrailerLen.
type ExtendedTrailer struct {
	HeaderSize uint16
	Encryption EncryptionType
	Signing    SignatureType
}

// DecodeExtendedTrailer decodes an ExtendedTrailer from the first
// ExtendedTrailerLen bytes of b.
func DecodeExtendedTrailer(b []byte) ExtendedTrailer {
	return ExtendedTrailer{
		HeaderSize: binary.LittleEndian.Uint16(b[0:2]),
		Encryption: EncryptionType(binary.LittleEndian.Uint16(b[2:4])),
		Signing:    SignatureType(binary.LittleEndian.Uint16(b[4:6])),
	}
}

// Encode appends the wire form of t to dst.
func (t ExtendedTrailer) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, t.HeaderSize)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(t.Encryption))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(t.Signing))
	return dst
}

// EncryptionTrailer carries the per-archive cipher material for
// streamcipher-keytable archives: the CDR initialization vector and the key
// table used to derive per-entry stream keys. The reader records it verbatim;
// running the cipher is the consumer's business.
type EncryptionTrailer struct {
	HeaderSize uint16
	CDRIV      [EncryptionBlockKeyLen]byte
	KeysTable  [EncryptionKeyTableSize][EncryptionBlockKeyLen]byte
}

// DecodeEncryptionTrailer decodes an EncryptionTrailer from the first
// EncryptionTrailerLen bytes of b.
func DecodeEncryptionTrailer(b []byte) EncryptionTrailer {
	t := EncryptionTrailer{
		HeaderSize: binary.LittleEndian.Uint16(b[0:2]),
	}
	copy(t.CDRIV[:], b[2:2+EncryptionBlockKeyLen])
	for i := range t.KeysTable {
		off := 2 + EncryptionBlockKeyLen + i*EncryptionBlockKeyLen
		copy(t.KeysTable[i][:], b[off:off+EncryptionBlockKeyLen])
	}
	return t
}

// SignatureTrailer carries the RSA signature over the central directory.
type SignatureTrailer struct {
	HeaderSize uint16
	Signature  [SignatureLen]byte
}

// DecodeSignatureTrailer decodes a SignatureTrailer from the first
// SignatureTrailerLen bytes of b.
func DecodeSignatureTrailer(b []byte) SignatureTrailer {
	t := SignatureTrailer{
		HeaderSize: binary.LittleEndian.Uint16(b[0:2]),
	}
	copy(t.Signature[:], b[2:2+SignatureLen])
	return t
}
