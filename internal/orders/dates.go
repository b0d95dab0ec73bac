package orders

import "time"

// StorageDateLayout is a fixed-width UTC layout, so stored dates sort lexically.
const StorageDateLayout = "2006-01-02T15:04:05.000000000Z"

// FormatStorageDate renders t for storage.
func FormatStorageDate(t time.Time) string {
	return t.UTC().Format(StorageDateLayout)
}

// ParseStorageDate reads a date written by FormatStorageDate.
func ParseStorageDate(s string) (time.Time, error) {
	return time.Parse(StorageDateLayout, s)
}
