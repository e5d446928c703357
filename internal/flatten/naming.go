package flatten

import (
	"fmt"
	"strings"
)

// NamingAppend and NamingPrepend select where the numeric uid sits in a
// device's key segment.
const (
	NamingAppend  = "append"
	NamingPrepend = "prepend"
)

// Slug reduces a device name to a collision-safe key segment: lower
// case, spaces to underscores, dots to dashes, everything else outside
// [a-z0-9_-] dropped.
func Slug(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		case r == '.':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// padUID zero-pads a numeric uid to three characters.
func padUID(uid string) string {
	if len(uid) >= 3 {
		return uid
	}
	return ("00" + uid)[len(uid)-1:]
}

// DeviceSegment builds the key segment for a named device. Two siblings
// sharing a name still get distinct segments because the uid is part of
// the segment.
func DeviceSegment(naming, uid, name string) string {
	slug := Slug(name)
	if naming == NamingAppend {
		return fmt.Sprintf("%s-%s", slug, uid)
	}
	return fmt.Sprintf("%s-%s", padUID(uid), slug)
}
