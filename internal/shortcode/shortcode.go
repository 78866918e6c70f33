// Package shortcode derives the compact alias for a bookmark from its row id.
package shortcode

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(alphabet))

// Encode converts a row id to its base62 representation.
func Encode(id uint64) string {
	if id == 0 {
		return string(alphabet[0])
	}

	buf := make([]byte, 0, 11)
	for id > 0 {
		buf = append(buf, alphabet[id%base])
		id /= base
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
