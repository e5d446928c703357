package nodes

// The bridge uses terse field names on the wire; the store exposes
// standardized ones. Both directions fall back to identity.
var rawToStandard = map[string]string{
	"bri":       "brightness",
	"sat":       "saturation",
	"ct":        "color_temperature",
	"colormode": "color_mode",
}

var standardToRaw = func() map[string]string {
	m := make(map[string]string, len(rawToStandard))
	for raw, std := range rawToStandard {
		m[std] = raw
	}
	return m
}()

// ToStandard translates a bridge field name to its store name.
func ToStandard(raw string) string {
	if std, ok := rawToStandard[raw]; ok {
		return std
	}
	return raw
}

// ToRaw translates a store field name back to its bridge name.
func ToRaw(standard string) string {
	if raw, ok := standardToRaw[standard]; ok {
		return raw
	}
	return standard
}

// IsMapped reports whether a bridge field name has a standardized alias.
func IsMapped(raw string) bool {
	_, ok := rawToStandard[raw]
	return ok
}
