// Package identutil derives storage-safe user keys from raw
// channel-specific identifiers.
package identutil

// UserKey returns the longest leading alphanumeric run of raw. Channel
// suffixes such as "@c.us" on WhatsApp chat ids are stripped, and the
// result is always safe to use as a single store path segment.
func UserKey(raw string) string {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			continue
		}
		return raw[:i]
	}
	return raw
}
