package utils

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

const DefaultAvatarSize = 200

// GravatarURL returns the Gravatar image for email, falling back to a
// generated identicon for addresses without one.
func GravatarURL(email string, size int) string {
	if size <= 0 {
		size = DefaultAvatarSize
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))

	q := url.Values{}
	q.Set("s", strconv.Itoa(size))
	q.Set("d", "identicon")
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?" + q.Encode()
}
