package cmd

import "time"

// windowsEpochOffset is the number of 100-nanosecond intervals between the
// Windows FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const windowsEpochOffset = 116444736000000000

// toFiletime converts a Go time to a WIM dentry record's 64-bit FILETIME
// field (spec.md §4.3 creation_time/last_access_time/last_write_time).
func toFiletime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100) + windowsEpochOffset
}

// fromFiletime is toFiletime's inverse, used when applying extracted
// metadata back onto the real filesystem.
func fromFiletime(ft uint64) time.Time {
	unixNano := (int64(ft) - windowsEpochOffset) * 100
	return time.Unix(0, unixNano)
}
