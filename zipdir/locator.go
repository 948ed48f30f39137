package zipdir

import (
	"encoding/binary"

	"github.com/dbuckler300/o3de/zipfile"
)

// cdrSearchWindowSize is how many bytes are read at a time while scanning
// backwards for the end-of-central-directory record. Comments are normally
// absent or short, so the first window almost always hits.
const cdrSearchWindowSize = 0x100

// maxArchiveSize is the pak file size limit.
const maxArchiveSize = int64(1) << 31

// maxCommentLength bounds how far before end-of-file a valid EOCD can start.
const maxCommentLength = 0xFFFF

// findCDREnd scans the file backwards for the EOCD record. The window buffer
// keeps an extra zipfile.EOCDLen-1 bytes of overlap past the window proper so
// that a signature straddling two windows is still seen whole.
//
// A signature whose comment length does not exactly cover the remaining file
// tail is rejected outright rather than scanned past: such a record signals
// tampering or truncation, and guessing offsets beyond it risks unrecoverable
// damage to the archive content.
func (r *reader) findCDREnd() error {
	if r.size > maxArchiveSize {
		return zderr(Unsupported, "the file is too large (%d bytes); paks over 2GiB cannot be opened", r.size)
	}

	if r.size < zipfile.EOCDLen {
		r.warnf("zipdir: the file is too small (%d bytes), it cannot contain the %d-byte CDREnd structure", r.size, zipfile.EOCDLen)
		return zderr(NoCdr, "the file is too small (%d bytes) to contain a central directory", r.size)
	}

	buf := make([]byte, cdrSearchWindowSize+zipfile.EOCDLen-1)

	// no valid EOCD can start before this
	var lowest int64
	if r.size > zipfile.EOCDLen+maxCommentLength {
		lowest = r.size - zipfile.EOCDLen - maxCommentLength
	}

	oldBufPos := r.size
	scanPos := r.size - zipfile.EOCDLen

	for {
		newBufPos := oldBufPos - cdrSearchWindowSize
		if newBufPos < 0 {
			newBufPos = 0
		}
		if newBufPos < lowest {
			newBufPos = lowest
		}

		// nothing left to search
		if newBufPos >= oldBufPos {
			return zderr(NoCdr, "cannot find the central directory record; this is either not a pak file or one without a central directory")
		}

		// the window is placed so it ends right where the overlap region
		// (holding the leading bytes of the previous, higher window) begins.
		readLen := oldBufPos - newBufPos
		winStart := cdrSearchWindowSize - readLen

		if err := r.s.seek(newBufPos); err != nil {
			return err
		}
		if err := r.s.read(buf[winStart:cdrSearchWindowSize]); err != nil {
			return err
		}

		for ; scanPos >= newBufPos; scanPos-- {
			rec := buf[winStart+(scanPos-newBufPos):]
			if binary.LittleEndian.Uint32(rec) != zipfile.EOCDSignature {
				continue
			}

			eocd := zipfile.DecodeEOCD(rec)
			if int64(eocd.CommentLength) != r.size-scanPos-zipfile.EOCDLen {
				return zderr(DataCorrupt, "the central directory record is followed by a comment of inconsistent length (declared %d, actual %d)",
					eocd.CommentLength, r.size-scanPos-zipfile.EOCDLen)
			}

			r.eocd = eocd
			r.eocdPos = scanPos
			return nil
		}

		// carry the leading bytes of this window into the overlap region so
		// a signature split across the boundary is matched next round.
		copy(buf[cdrSearchWindowSize:], buf[winStart:winStart+zipfile.EOCDLen-1])
		oldBufPos = newBufPos
	}
}
