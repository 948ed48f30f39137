package zipdir

import (
	"hash/crc32"

	"github.com/dbuckler300/o3de/zipfile"
)

// Entry names are normalized to lowercase with a single canonical separator
// before they enter the index; lookups normalize the same way.
const (
	pathSeparator  = '/'
	wrongSeparator = '\\'
)

// normalizeName lowercases ASCII letters and replaces the wrong separator in
// place. The bytes are part of the CDR buffer, so the normalized form is what
// the string pool retains.
func normalizeName(name []byte) {
	for i, b := range name {
		switch {
		case b >= 'A' && b <= 'Z':
			name[i] = b + ('a' - 'A')
		case b == wrongSeparator:
			name[i] = pathSeparator
		}
	}
}

// buildEntries reads the whole central directory into one buffer and walks it
// record by record. The buffer is kept: entry names are normalized in place
// and the tree refers to them by offset, so the buffer doubles as the string
// pool for the directory and must outlive it. A little slack is allocated past
// the CDR so decoding near the end never runs off the buffer.
func (r *reader) buildEntries() error {
	if err := r.s.seek(int64(r.eocd.CDROffset)); err != nil {
		return err
	}

	cdrSize := int(r.eocd.CDRSize)
	if cdrSize == 0 {
		return nil
	}

	r.pool = make([]byte, cdrSize+16)
	if err := r.s.read(r.pool[:cdrSize]); err != nil {
		return &Error{Kind: CorruptedData, Msg: "archive contains corrupted CDR", Err: err}
	}

	if r.opts.DecryptCDR != nil {
		if err := r.opts.DecryptCDR(r.pool[:cdrSize]); err != nil {
			return zdwrap(CorruptedData, err, "CDR decryption hook failed")
		}
	} else if r.encryptedHeaders != zipfile.NotEncrypted {
		r.warnf("zipdir: archive declares %s header encryption but no decryption hook is installed", r.encryptedHeaders)
		return zderr(CorruptedData, "archive headers are encrypted (%s) and cannot be read", r.encryptedHeaders)
	}

	if r.signedHeaders == zipfile.CDRSigned {
		// recorded on the Cache for downstream verification; not checked here.
		r.warnf("zipdir: archive has a signed CDR; the signature is not verified at open time")
	}

	pos := 0
	for pos+zipfile.CDRHeaderLen <= cdrSize {
		hdr := zipfile.DecodeCDRHeader(r.pool[pos:])
		if hdr.Signature != zipfile.CDRHeaderSignature {
			return zderr(CdrCorrupt, "bad central directory record signature at offset %d", pos)
		}

		if hdr.NeedsVersion&0xFF > zipfile.MaxNeedsVersion {
			return zderr(Unsupported, "cannot read the archive file (needs version %d > %d)", hdr.NeedsVersion&0xFF, zipfile.MaxNeedsVersion)
		}

		nameStart := pos + zipfile.CDRHeaderLen
		endOfRecord := nameStart + int(hdr.NameLen) + int(hdr.ExtraLen) + int(hdr.CommentLen)
		// a record overlapping the end of the directory means truncation.
		if endOfRecord > cdrSize {
			return zderr(CdrCorrupt, "central directory record at offset %d is corrupt or truncated", pos)
		}

		extra := parseExtras(r.pool[nameStart+int(hdr.NameLen) : nameStart+int(hdr.NameLen)+int(hdr.ExtraLen)])

		name := r.pool[nameStart : nameStart+int(hdr.NameLen)]
		if !isDirectoryName(name) {
			normalizeName(name)
			if err := r.addFileEntry(name, uint32(nameStart), &hdr, extra); err != nil {
				return err
			}
		}

		pos = endOfRecord
	}

	return nil
}

func isDirectoryName(name []byte) bool {
	if len(name) == 0 {
		return true
	}

	last := name[len(name)-1]
	return last == pathSeparator || last == wrongSeparator
}

// extraData is what the per-entry extra-field TLV walk can contribute.
type extraData struct {
	lastModify uint64
	hasModify  bool
}

// parseExtras walks the TLV sequence [headerID u16, dataSize u16, data] and
// picks out the fields the index cares about; unknown IDs are skipped.
func parseExtras(b []byte) (extra extraData) {
	for len(b) >= zipfile.ExtraFieldHeaderLen {
		id := uint16(b[0]) | uint16(b[1])<<8
		size := int(b[2]) | int(b[3])<<8
		b = b[zipfile.ExtraFieldHeaderLen:]
		if size > len(b) {
			break
		}

		if id == zipfile.ExtraNTFS {
			if t, ok := zipfile.NTFSModTime(b[:size]); ok {
				extra.lastModify, extra.hasModify = t, true
			}
		}

		b = b[size:]
	}

	return
}

// addFileEntry checks the directory record for consistency, resolves the
// payload offset against the local file header, and inserts the entry into
// the tree (or the name-hash map in FilenamesAsCrc32 mode).
func (r *reader) addFileEntry(name []byte, nameOffset uint32, hdr *zipfile.CDRHeader, extra extraData) error {
	if hdr.LocalHeaderOffset > r.eocd.CDROffset {
		// the local header would be beyond the CDR: impossible.
		return zderr(CdrCorrupt, "central directory describes %q outside the archive boundaries", name)
	}

	if (hdr.Method == zipfile.MethodStore || hdr.Method == zipfile.MethodStoreAndStreamcipherKeytable) &&
		hdr.Desc.CompressedSize != hdr.Desc.UncompressedSize {
		return zderr(ValidationFailed, "stored file %q declares compressed size %d not matching uncompressed size %d",
			name, hdr.Desc.CompressedSize, hdr.Desc.UncompressedSize)
	}

	e := &FileEntry{
		Method:            hdr.Method,
		CRC32:             hdr.Desc.CRC32,
		CompressedSize:    hdr.Desc.CompressedSize,
		UncompressedSize:  hdr.Desc.UncompressedSize,
		LocalHeaderOffset: hdr.LocalHeaderOffset,
		NameOffset:        nameOffset,
		NameLen:           hdr.NameLen,
		ModTime:           hdr.ModTime,
		ModDate:           hdr.ModDate,
	}
	if extra.hasModify {
		e.Modified = zipfile.NTFSTimeToTime(extra.lastModify)
	} else {
		e.Modified = zipfile.DosDateTimeToTime(hdr.ModDate, hdr.ModTime)
	}

	if err := r.initDataOffset(e, hdr, name); err != nil {
		return err
	}

	if r.crcMap != nil {
		r.crcMap[crc32.ChecksumIEEE(name)] = e
	} else {
		r.root.add(string(name), e)
	}

	r.entries = append(r.entries, e)

	if r.opts.EntryHook != nil {
		r.opts.EntryHook(string(name))
	}

	return nil
}
