package nodes

import "testing"

func TestResolve_FullPath(t *testing.T) {
	n := Resolve("lights.wohnzimmer-001.name")
	if n.Description != "A unique, editable name given to the light" {
		t.Errorf("lights name resolved to %q", n.Description)
	}
	if n.Type != TypeString {
		t.Errorf("lights name type = %q", n.Type)
	}
}

func TestResolve_StripsIDSegments(t *testing.T) {
	// One id segment between namespace and field
	n := Resolve("sensors.motion-007.state.temperature")
	if n.Convert != ConvertTemperature {
		t.Errorf("sensor temperature should carry the temperature conversion, got %q", n.Convert)
	}
	if n.Unit != "°C" {
		t.Errorf("sensor temperature unit = %q", n.Unit)
	}

	// Two id segments (scenes nested under their group)
	n = Resolve("scenes.living_room-002.sunset-ab12cd.lights")
	if n.Convert != ConvertString {
		t.Errorf("scene lights should join to a string, got %q", n.Convert)
	}
}

func TestResolve_LastSegmentFallback(t *testing.T) {
	// Action fields resolve by their bare name under any device path
	n := Resolve("groups.kitchen-003.action.brightness")
	if n.Role != "level.dimmer" {
		t.Errorf("brightness role = %q", n.Role)
	}

	n = Resolve("lights.desk-001.action.color_temperature")
	if n.Unit != "K" {
		t.Errorf("color_temperature unit = %q", n.Unit)
	}
}

func TestResolve_CleansKey(t *testing.T) {
	// Device names with spaces and unicode must not break resolution
	n := Resolve("lights.Große Lampe-004.name")
	if n.Description != "A unique, editable name given to the light" {
		t.Errorf("unclean key resolved to %q", n.Description)
	}
}

func TestResolve_Unknown(t *testing.T) {
	n := Resolve("lights.desk-001.somevendorfield")
	if n.Description != DefaultNode.Description || n.Role != DefaultNode.Role || n.Type != DefaultNode.Type {
		t.Errorf("unknown field should resolve to the default node, got %+v", n)
	}
}

func TestMapping_RawToStandard(t *testing.T) {
	pairs := map[string]string{
		"bri":       "brightness",
		"sat":       "saturation",
		"ct":        "color_temperature",
		"colormode": "color_mode",
	}
	for raw, std := range pairs {
		if got := ToStandard(raw); got != std {
			t.Errorf("ToStandard(%q) = %q, want %q", raw, got, std)
		}
		if got := ToRaw(std); got != raw {
			t.Errorf("ToRaw(%q) = %q, want %q", std, got, raw)
		}
	}
}

func TestMapping_IdentityFallback(t *testing.T) {
	// Unmapped fields pass through untouched in both directions
	if got := ToStandard("on"); got != "on" {
		t.Errorf("ToStandard(on) = %q", got)
	}
	if got := ToRaw("hue"); got != "hue" {
		t.Errorf("ToRaw(hue) = %q", got)
	}
	if IsMapped("on") {
		t.Error("on should not be mapped")
	}
	if !IsMapped("bri") {
		t.Error("bri should be mapped")
	}
}

func TestIsSubscribable(t *testing.T) {
	for _, field := range []string{"on", "brightness", "level", "scene", "trigger", "_commands", "hex"} {
		if !IsSubscribable(field) {
			t.Errorf("%q should be subscribable", field)
		}
	}
	for _, field := range []string{"reachable", "name", "bri", "colormode"} {
		if IsSubscribable(field) {
			t.Errorf("%q should not be subscribable", field)
		}
	}
}
