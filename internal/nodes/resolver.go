package nodes

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^a-z0-9._\-]`)

// cleanKey normalizes a lookup key: lower-case, spaces to underscores,
// anything else outside [a-z0-9._-] dropped.
func cleanKey(key string) string {
	key = strings.ToLower(strings.ReplaceAll(key, " ", "_"))
	return nonWord.ReplaceAllString(key, "")
}

// Resolve returns the most specific metadata entry for a dotted key.
//
// The probe order strips id-like segments between the namespace and the
// field progressively:
//
//	lights.<id>.name        -> lights.<id>.name, lights.name, name
//	scenes.<grp>.<scene>.on -> full, scenes.<scene>.on, scenes.on, on
//
// Every key resolves; DefaultNode covers the rest.
func Resolve(key string) Node {
	segments := strings.Split(key, ".")
	if len(segments) == 0 {
		return DefaultNode
	}

	ns := segments[0]
	rest := segments[1:]

	probes := []string{cleanKey(ns + "." + strings.Join(rest, "."))}
	if len(rest) > 1 {
		probes = append(probes, cleanKey(ns+"."+strings.Join(rest[1:], ".")))
	}
	if len(rest) > 2 {
		probes = append(probes, cleanKey(ns+"."+strings.Join(rest[2:], ".")))
	}
	probes = append(probes, cleanKey(segments[len(segments)-1]))

	for _, probe := range probes {
		if node, ok := lookup(probe); ok {
			return node
		}
	}
	return DefaultNode
}
