package zipdir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbuckler300/o3de/zipfile"
)

func TestTrailerPlainComment(t *testing.T) {
	// comments shorter than the extended trailer are just comments.
	data := testArchive{comment: []byte("hi")}.build(t)

	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, zipfile.NotEncrypted, cache.Encryption())
}

func TestTrailerExtendedOnly(t *testing.T) {
	data := testArchive{
		files:   []testFile{{name: "a.txt", data: []byte("x")}},
		comment: extendedTrailer(zipfile.NotEncrypted, zipfile.NotSigned),
	}.build(t)

	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, zipfile.NotEncrypted, cache.Encryption())
	assert.Equal(t, zipfile.NotSigned, cache.Signing())
	assert.NotNil(t, cache.FindEntry("a.txt"))
}

func TestTrailerBadSelfSize(t *testing.T) {
	trailer := extendedTrailer(zipfile.NotEncrypted, zipfile.NotSigned)
	trailer[0] = 7 // self-declared size no longer matches

	_, err := openBytes(t, testArchive{comment: trailer}.build(t), InitDefault, 0)
	assert.ErrorIs(t, err, DataCorrupt)
}

func TestTrailerLegacyEncryptionBits(t *testing.T) {
	data := testArchive{
		disk: uint16(zipfile.EncryptedTEA) << 14,
	}.build(t)

	// the legacy bits must be masked out before the multivolume check, and
	// the declared technique recorded.
	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, zipfile.EncryptedTEA, cache.Encryption())
}

func TestTrailerKeytableEncryption(t *testing.T) {
	data := testArchive{
		comment: extendedTrailer(zipfile.EncryptedStreamcipherKeytable, zipfile.NotSigned),
	}.build(t)

	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, zipfile.EncryptedStreamcipherKeytable, cache.Encryption())
	assert.Equal(t, uint16(zipfile.EncryptionTrailerLen), cache.EncryptionTrailer().HeaderSize)
}

func TestTrailerSignedCDR(t *testing.T) {
	data := testArchive{
		files:   []testFile{{name: "a.txt", data: []byte("x")}},
		comment: extendedTrailer(zipfile.NotEncrypted, zipfile.CDRSigned),
	}.build(t)

	cache, err := openBytes(t, data, InitDefault, 0)
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, zipfile.CDRSigned, cache.Signing())
	assert.Equal(t, uint16(zipfile.SignatureTrailerLen), cache.SignatureTrailer().HeaderSize)
	assert.NotNil(t, cache.FindEntry("a.txt"))
}

func TestTrailerEncryptedCDRWithoutHook(t *testing.T) {
	data := testArchive{
		files:   []testFile{{name: "a.txt", data: []byte("x")}},
		comment: extendedTrailer(zipfile.EncryptedStreamcipherKeytable, zipfile.NotSigned),
	}.build(t)

	_, err := openBytes(t, data, InitDefault, 0)
	assert.ErrorIs(t, err, CorruptedData)
}

func TestTrailerEncryptedCDRWithHook(t *testing.T) {
	data := testArchive{
		files:   []testFile{{name: "Dir/File.bin", data: []byte("payload")}},
		comment: extendedTrailer(zipfile.EncryptedStreamcipherKeytable, zipfile.NotSigned),
	}.build(t)

	// the hook sees exactly the CDR bytes; this archive is not really
	// encrypted, so a no-op hook is enough to proceed.
	var hooked int
	cache, err := openBytes(t, data, InitDefault, 0, func(o *Options) {
		o.DecryptCDR = func(b []byte) error {
			hooked = len(b)
			return nil
		}
	})
	require.NoError(t, err)
	defer cache.Close()

	assert.NotZero(t, hooked)

	// with encrypted headers the data offset comes from the CDR alone.
	e := cache.FindEntry("dir/file.bin")
	require.NotNil(t, e)
	assert.Equal(t, e.LocalHeaderOffset+zipfile.LocalHeaderLen+uint32(len("Dir/File.bin")), e.DataOffset)
}

func TestTrailerWrongCommentLengthForTrailers(t *testing.T) {
	trailer := extendedTrailer(zipfile.EncryptedStreamcipherKeytable, zipfile.NotSigned)

	// drop the encryption trailer but keep its declaration.
	data := testArchive{
		comment:         trailer[:zipfile.ExtendedTrailerLen],
		commentLenDelta: 0,
	}.build(t)

	_, err := openBytes(t, data, InitDefault, 0)
	assert.ErrorIs(t, err, DataCorrupt)
}
