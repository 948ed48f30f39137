package zipdir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbuckler300/o3de/zipfile"
)

// locate runs only the EOCD scan over raw bytes.
func locate(t *testing.T, data []byte) (*reader, error) {
	t.Helper()

	r := &reader{
		s:    stream{src: bytes.NewReader(data)},
		opts: &Options{},
		size: int64(len(data)),
	}
	return r, r.findCDREnd()
}

func TestFindCDREnd(t *testing.T) {
	tests := []struct {
		name    string
		comment int
	}{
		{name: "no comment", comment: 0},
		{name: "comment within first window", comment: 100},
		// the EOCD starts more than one window before end of file, so the
		// scan has to advance at least once.
		{name: "comment crossing one window", comment: 600},
		{name: "comment crossing many windows", comment: 5000},
		// positions the signature so it straddles a window boundary and is
		// only visible thanks to the overlap region.
		{name: "signature straddling window boundary", comment: cdrSearchWindowSize - zipfile.EOCDLen + 2},
		{name: "maximum comment", comment: 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testArchive{
				files:   []testFile{{name: "a.txt", data: []byte("hello")}},
				comment: bytes.Repeat([]byte{0xAA}, tt.comment),
			}.build(t)

			r, err := locate(t, data)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)-tt.comment-zipfile.EOCDLen), r.eocdPos)
			assert.Equal(t, uint16(tt.comment), r.eocd.CommentLength)
		})
	}
}

func TestFindCDREndUnique(t *testing.T) {
	// a stored payload may contain the EOCD signature; only the real record
	// has a consistent comment length, and the scan must not be fooled since
	// it runs backwards from the end.
	sig := make([]byte, 0, zipfile.EOCDLen)
	sig = zipfile.EOCD{Signature: zipfile.EOCDSignature}.Encode(sig)

	data := testArchive{
		files: []testFile{{name: "decoy.bin", data: append(sig, make([]byte, 40)...)}},
	}.build(t)

	r, err := locate(t, data)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-zipfile.EOCDLen), r.eocdPos)
}

func TestFindCDREndTooSmall(t *testing.T) {
	_, err := locate(t, []byte("PK"))
	assert.ErrorIs(t, err, NoCdr)
}

func TestFindCDREndNotAnArchive(t *testing.T) {
	_, err := locate(t, bytes.Repeat([]byte("definitely not a zip. "), 100))
	assert.ErrorIs(t, err, NoCdr)
}

func TestFindCDREndInconsistentComment(t *testing.T) {
	data := testArchive{appendTail: []byte{0x01, 0x02}}.build(t)

	_, err := locate(t, data)
	assert.ErrorIs(t, err, DataCorrupt)
}
