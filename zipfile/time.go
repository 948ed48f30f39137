package zipfile

import "time"

// DosDateTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func DosDateTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

// TimeToDosDateTime is the inverse of DosDateTimeToTime, truncating to the
// format's 2s resolution. Times before 1980 collapse to the epoch.
func TimeToDosDateTime(t time.Time) (dosDate, dosTime uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		return 0x21, 0 // 1980-01-01 00:00:00
	}

	dosDate = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	dosTime = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return
}

// ntfsEpochOffset is the number of seconds between the NTFS FILETIME zero
// point (1601-01-01) and the Unix epoch.
const ntfsEpochOffset = 11644473600

// NTFSTimeToTime converts an NTFS FILETIME (100ns intervals since 1601) into a
// time.Time. A time.Duration cannot span the 370+ years involved, so the value
// is split into seconds and remainder first.
func NTFSTimeToTime(ft uint64) time.Time {
	sec := int64(ft/1e7) - ntfsEpochOffset
	nsec := int64(ft%1e7) * 100
	return time.Unix(sec, nsec).UTC()
}

// TimeToNTFSTime is the inverse of NTFSTimeToTime.
func TimeToNTFSTime(t time.Time) uint64 {
	return uint64(t.Unix()+ntfsEpochOffset)*1e7 + uint64(t.Nanosecond()/100)
}
