package zipdir

import "sort"

// refreshEOFOffsets runs the post-parse sweep that determines how much room
// each entry has to grow in place. Entries are ordered by NameOffset, a stable
// proxy for their position in the CDR buffer which in turn reflects on-disk
// payload order; each entry's usable region then ends where the next entry's
// payload starts, and the last entry's region ends at the CDR.
func refreshEOFOffsets(entries []*FileEntry, cdrOffset uint32) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].NameOffset < entries[j].NameOffset
	})

	for i, e := range entries {
		if i+1 < len(entries) {
			e.FreeEnd = entries[i+1].DataOffset
		} else {
			e.FreeEnd = cdrOffset
		}
	}
}
