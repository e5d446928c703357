package nodes

// subscriptions lists the standardized field names that are controllable
// through the bridge API. Leaves carrying one of these names under a
// state/config namespace are re-rooted under the action namespace and
// exposed as writable.
//
// https://developers.meethue.com/develop/hue-api/lights-api/#142_response
var subscriptions = map[string]struct{}{
	"on":                {},
	"brightness":        {},
	"hue":               {},
	"saturation":        {},
	"xy":                {},
	"color_temperature": {},
	"alert":             {},
	"effect":            {},
	"transitiontime":    {},
	"color_mode":        {},
	"level":             {},
	"scene":             {},
	"trigger":           {},
	"rgb":               {},
	"hsv":               {},
	"cmyk":              {},
	"xyz":               {},
	"hex":               {},
	"_commands":         {},
}

// IsSubscribable reports whether a standardized field name is a
// controllable action field.
func IsSubscribable(field string) bool {
	_, ok := subscriptions[field]
	return ok
}
