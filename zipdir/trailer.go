package zipdir

import (
	"github.com/dbuckler300/o3de/zipfile"
)

// decodeTrailers interprets the EOCD comment area as the optional vendor
// trailers declaring encryption and signing of the archive headers.
//
// Earlier pak tools stored the encryption type in the top bits of the EOCD
// disk number. That still works, but it cannot coexist with signed paks that
// must stay readable by stock zip tools, so newer archives declare the
// techniques in an extended trailer at the start of the comment area instead.
// Declaring encryption in both places is rejected as corrupt.
func (r *reader) decodeTrailers() error {
	if legacy := r.eocd.LegacyEncryption(); legacy == zipfile.EncryptedTEA || legacy == zipfile.EncryptedStreamcipher {
		r.encryptedHeaders = legacy
	}
	r.eocd.ClearLegacyEncryption()

	if int(r.eocd.CommentLength) < zipfile.ExtendedTrailerLen {
		// no room for vendor metadata; a plain comment (or none) remains.
		return nil
	}

	if err := r.s.seek(int64(r.eocd.CDROffset) + int64(r.eocd.CDRSize) + zipfile.EOCDLen); err != nil {
		return err
	}

	buf := make([]byte, zipfile.ExtendedTrailerLen)
	if err := r.s.read(buf); err != nil {
		return err
	}

	r.headerExtended = zipfile.DecodeExtendedTrailer(buf)
	if r.headerExtended.HeaderSize != zipfile.ExtendedTrailerLen {
		return zderr(DataCorrupt, "bad extended header (self-declared size %d)", r.headerExtended.HeaderSize)
	}

	r.signedHeaders = r.headerExtended.Signing

	// sanity-check the comment length now that we know what it must contain,
	// and that the declared techniques are ones we recognize.
	expected := zipfile.ExtendedTrailerLen

	if r.headerExtended.Encryption != zipfile.NotEncrypted && r.encryptedHeaders != zipfile.NotEncrypted {
		// encryption declared both in the disk number (old technique) and in
		// the extended trailer (new technique).
		return zderr(DataCorrupt, "unexpected encryption technique in header")
	}

	r.encryptedHeaders = r.headerExtended.Encryption
	switch r.encryptedHeaders {
	case zipfile.NotEncrypted:
	case zipfile.EncryptedStreamcipherKeytable:
		expected += zipfile.EncryptionTrailerLen
	default:
		return zderr(DataCorrupt, "bad encryption technique in header (%d)", r.encryptedHeaders)
	}

	switch r.signedHeaders {
	case zipfile.NotSigned:
	case zipfile.CDRSigned:
		expected += zipfile.SignatureTrailerLen
	default:
		return zderr(DataCorrupt, "bad signing technique in header (%d)", r.signedHeaders)
	}

	if int(r.eocd.CommentLength) != expected {
		return zderr(DataCorrupt, "comment field is the wrong length (declared %d, trailers need %d)", r.eocd.CommentLength, expected)
	}

	if r.encryptedHeaders == zipfile.EncryptedStreamcipherKeytable {
		buf = make([]byte, zipfile.EncryptionTrailerLen)
		if err := r.s.read(buf); err != nil {
			return err
		}

		r.headerEncryption = zipfile.DecodeEncryptionTrailer(buf)
		if r.headerEncryption.HeaderSize != zipfile.EncryptionTrailerLen {
			return zderr(DataCorrupt, "bad encryption header (self-declared size %d)", r.headerEncryption.HeaderSize)
		}
	}

	if r.signedHeaders == zipfile.CDRSigned {
		buf = make([]byte, zipfile.SignatureTrailerLen)
		if err := r.s.read(buf); err != nil {
			return err
		}

		r.headerSignature = zipfile.DecodeSignatureTrailer(buf)
		if r.headerSignature.HeaderSize != zipfile.SignatureTrailerLen {
			return zderr(DataCorrupt, "bad signature header (self-declared size %d)", r.headerSignature.HeaderSize)
		}
	}

	return nil
}
