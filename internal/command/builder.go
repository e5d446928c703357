// Package command translates store writes into bridge commands,
// coalesces them per target and dispatches them with bounded retries.
package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huesyncd/internal/flatten"
	"github.com/dokzlo13/huesyncd/internal/nodes"
	"github.com/dokzlo13/huesyncd/internal/store"
	"github.com/dokzlo13/huesyncd/internal/transform"
)

// Command is one outgoing bridge request. Transient: merged into a
// queue entry and discarded after dispatch.
type Command struct {
	// Trigger is the bridge-relative target path, e.g. "lights/3/state".
	Trigger string
	Method  string
	// Path is the device's store key prefix, used for no-op detection
	// and lastAction recording.
	Path string
	Kind string
	Name string
	Body map[string]any
}

// Policy carries the cross-field business rule flags.
type Policy struct {
	BriWhenOff bool
	HueToXY    bool
}

// Builder turns a (key, value) store write into bridge commands.
type Builder struct {
	store  store.Store
	reg    *flatten.Registry
	policy Policy
}

// NewBuilder creates a command builder.
func NewBuilder(st store.Store, reg *flatten.Registry, policy Policy) *Builder {
	return &Builder{store: st, reg: reg, policy: policy}
}

// replayOptions is the stored shape of a schedule/rule/scene command.
type replayOptions struct {
	Address string         `json:"address"`
	Method  string         `json:"method"`
	Body    map[string]any `json:"body"`
}

// Build produces the commands for one external store write.
func (b *Builder) Build(key string, value any) ([]Command, error) {
	segments := strings.Split(key, ".")
	if len(segments) < 3 {
		return nil, fmt.Errorf("%w: key %q too short", ErrUnknownDevice, key)
	}

	action := segments[len(segments)-1]
	parent := strings.Join(segments[:len(segments)-1], ".")
	devicePath := parent[:strings.LastIndex(parent, ".")]
	kind := segments[0]

	uid := b.nearestUID(devicePath)
	if uid == "" {
		return nil, fmt.Errorf("%w: no uid under %q", ErrUnknownDevice, devicePath)
	}
	name, _ := b.storeString(devicePath + ".name")

	cmd := Command{
		Method: http.MethodPut,
		Path:   devicePath,
		Kind:   kind,
		Name:   name,
		Body:   map[string]any{action: value},
	}
	cmd.Trigger = triggerPath(kind, uid)

	// scene and command-buffer states reset after acceptance
	if action == "scene" || action == "_commands" || action == "trigger" {
		defer b.store.Ack(key, resetValue(action))
	}

	if action == "_commands" {
		parsed, err := parseCommands(value)
		if err != nil {
			return nil, err
		}
		cmd.Body = parsed
	}

	switch kind {
	case "scenes":
		return b.buildScene(cmd, uid, devicePath)
	case "schedules", "rules":
		return b.buildReplay(cmd, parent, devicePath)
	case "lights", "groups":
		if err := b.applyLightRules(&cmd, action); err != nil {
			return nil, err
		}
		return []Command{cmd}, nil
	default:
		return []Command{cmd}, nil
	}
}

func resetValue(action string) any {
	if action == "trigger" {
		return false
	}
	return ""
}

// nearestUID walks up the key prefix looking for a stored uid.
func (b *Builder) nearestUID(path string) string {
	for path != "" {
		if uid, ok := b.storeString(path + ".uid"); ok && uid != "" {
			return uid
		}
		i := strings.LastIndex(path, ".")
		if i < 0 {
			return ""
		}
		path = path[:i]
	}
	return ""
}

func (b *Builder) storeString(key string) (string, bool) {
	v, ok := b.store.Get(key)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return fmt.Sprintf("%v", t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// triggerPath derives the writable sub-resource per kind.
func triggerPath(kind, uid string) string {
	switch kind {
	case "groups":
		return fmt.Sprintf("%s/%s/action", kind, uid)
	case "sensors":
		return fmt.Sprintf("%s/%s/config", kind, uid)
	default:
		return fmt.Sprintf("%s/%s/state", kind, uid)
	}
}

func parseCommands(value any) (map[string]any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON string", ErrInvalidCommands)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, fmt.Errorf("%w: format shall be {\"command\": value}, e.g. {\"on\": true}: %v", ErrInvalidCommands, err)
	}
	return parsed, nil
}

// buildScene derives the trigger for a scene write. A GroupScene
// targets its owning group's action endpoint, a LightScene the virtual
// "all lights" group.
func (b *Builder) buildScene(cmd Command, uid, devicePath string) ([]Command, error) {
	sceneType, _ := b.storeString(devicePath + ".type")
	sceneName, _ := b.storeString(devicePath + ".name")

	switch sceneType {
	case "GroupScene":
		groupID, ok := b.storeString(devicePath + ".group")
		if !ok {
			return nil, fmt.Errorf("%w: scene %q has no group", ErrInvalidScenePayload, sceneName)
		}
		cmd.Trigger = fmt.Sprintf("groups/%s/action", groupID)
		if group, ok := b.reg.Get("groups", groupID); ok {
			cmd.Name = fmt.Sprintf("%s (%s)", group.Name, sceneName)
		}
		cmd.Body = map[string]any{"scene": uid}
		return []Command{cmd}, nil

	case "LightScene":
		cmd.Trigger = "groups/0/action"
		cmd.Name = fmt.Sprintf("lights (%s)", sceneName)
		cmd.Body = map[string]any{"scene": uid}
		return []Command{cmd}, nil

	default:
		return nil, fmt.Errorf("%w: scene type %q, must be GroupScene or LightScene", ErrInvalidScenePayload, sceneType)
	}
}

// buildReplay recovers the literal method/address/body a schedule or
// rule action stores and replays it. The options blob is the trigger's
// sibling leaf: schedules.<s>.action.options for a schedule,
// rules.<r>.action.<name>.options for a rule.
func (b *Builder) buildReplay(cmd Command, parent, devicePath string) ([]Command, error) {
	options, ok := b.storeString(parent + ".options")
	if !ok {
		options, ok = b.storeString(devicePath + ".options")
	}
	if !ok {
		return nil, fmt.Errorf("%w: no stored options under %q", ErrInvalidScenePayload, parent)
	}

	var replay replayOptions
	if err := json.Unmarshal([]byte(options), &replay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenePayload, err)
	}
	if replay.Address == "" {
		return nil, fmt.Errorf("%w: stored options carry no address", ErrInvalidScenePayload)
	}

	cmd.Trigger = strings.TrimPrefix(replay.Address, "/")
	if replay.Method != "" {
		cmd.Method = replay.Method
	}
	cmd.Body = replay.Body
	return []Command{cmd}, nil
}

// applyLightRules rewrites a light/group command body per the
// cross-field business rules: on/off vs brightness linkage, level
// rewriting, unit conversions and the prefer-xy policy.
func (b *Builder) applyLightRules(cmd *Command, action string) error {
	actionPath := cmd.Path + ".action."

	// color space writes collapse to a hue/sat/bri triplet
	if isColorSpace(action) {
		raw, _ := cmd.Body[action].(string)
		hsv, err := transform.ParseColor(action, raw)
		if err != nil {
			return err
		}
		delete(cmd.Body, action)
		if _, ok := cmd.Body["hue"]; !ok {
			cmd.Body["hue"] = hsv.H
		}
		if _, ok := cmd.Body["saturation"]; !ok {
			cmd.Body["saturation"] = transform.PercentToSaturation(hsv.S)
		}
		if _, ok := cmd.Body["brightness"]; !ok {
			cmd.Body["brightness"] = transform.LevelToBrightness(hsv.V)
		}
	}

	// standardized names back to wire names
	for field, value := range cmd.Body {
		raw := nodes.ToRaw(field)
		if raw != field {
			delete(cmd.Body, field)
			cmd.Body[raw] = value
		}
	}

	hasExplicitBri := func() bool {
		_, hasBri := cmd.Body["bri"]
		_, hasLevel := cmd.Body["level"]
		return hasBri || hasLevel
	}

	if on, ok := cmd.Body["on"].(bool); ok && !hasExplicitBri() {
		stored, hasStored := b.store.Get(actionPath + "brightness")
		if !on && hasStored && b.policy.BriWhenOff {
			// remember brightness so on=true can restore it
			b.store.Ack(actionPath+"real_brightness", stored)
			b.store.Ack(actionPath+"brightness", 0)
			b.store.Ack(actionPath+"level", 0)
		}
		if on && hasStored {
			restoreKey := actionPath + "brightness"
			if b.policy.BriWhenOff {
				restoreKey = actionPath + "real_brightness"
			}
			restored, _ := b.store.Get(restoreKey)
			bri := toInt(restored)
			if bri == 0 {
				bri = 254
			}
			cmd.Body["bri"] = bri
		}
	}

	if level, ok := bodyNumber(cmd.Body, "level"); ok {
		delete(cmd.Body, "level")
		if level > 0 {
			cmd.Body["on"] = true
			cmd.Body["bri"] = transform.LevelToBrightness(level)
		} else {
			cmd.Body["on"] = false
		}
	}

	if bri, ok := bodyNumber(cmd.Body, "bri"); ok {
		if bri > 0 {
			b.store.Ack(actionPath+"real_brightness", bri)
			cmd.Body["on"] = true
		} else {
			delete(cmd.Body, "bri")
			cmd.Body["on"] = false
		}
	}

	// the store carries degrees and Kelvin; the wire wants raw units
	var hueDegrees float64
	hadHue := false
	if hue, ok := bodyNumber(cmd.Body, "hue"); ok && hue <= 360 {
		hueDegrees = hue
		hadHue = true
		cmd.Body["hue"] = transform.DegreesToHue(hue)
	}
	if ct, ok := bodyNumber(cmd.Body, "ct"); ok {
		cmd.Body["ct"] = transform.KelvinToMired(ct)
	}

	// hue/sat is unreliable on third-party hardware; prefer xy there
	if _, ok := cmd.Body["hue"]; ok && b.policy.HueToXY {
		manufacturer, _ := b.storeString(cmd.Path + ".manufacturername")
		if manufacturer != "" && manufacturer != "Philips" {
			if !hadHue {
				raw, _ := bodyNumber(cmd.Body, "hue")
				hueDegrees = float64(transform.HueToDegrees(raw))
			}
			sat, ok := bodyNumber(cmd.Body, "sat")
			if !ok {
				sat = toFloat(b.storeValue(actionPath + "saturation"))
			}
			bri, ok := bodyNumber(cmd.Body, "bri")
			if !ok {
				bri = toFloat(b.storeValue(actionPath + "brightness"))
			}
			rgb := transform.HSVToRGB(transform.HSV{
				H: hueDegrees,
				S: float64(transform.SaturationToPercent(sat)),
				V: float64(transform.BrightnessToLevel(bri)),
			})
			xy := transform.RGBToXY(rgb)
			cmd.Body["xy"] = []float64{xy[0], xy[1]}
			log.Debug().Str("device", cmd.Name).Floats64("xy", cmd.Body["xy"].([]float64)).Msg("Converted hue/sat to xy")
		}
	}

	// a light rejects color changes while off
	if _, hasOn := cmd.Body["on"]; !hasOn {
		if _, hasAlert := cmd.Body["alert"]; !hasAlert {
			cmd.Body["on"] = true
		}
	}

	return nil
}

func (b *Builder) storeValue(key string) any {
	v, _ := b.store.Get(key)
	return v
}

func isColorSpace(action string) bool {
	switch action {
	case "rgb", "hsv", "cmyk", "xyz", "hex":
		return true
	}
	return false
}

func bodyNumber(body map[string]any, field string) (float64, bool) {
	v, ok := body[field]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toInt(v any) int {
	return int(toFloat(v))
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}
