// Package flatten mirrors the nested JSON state tree of the bridge into
// the flat namespaced store, assigning every leaf a stable dotted key,
// and registers the device records used to route store writes back into
// bridge commands.
package flatten

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huesyncd/internal/nodes"
	"github.com/dokzlo13/huesyncd/internal/store"
	"github.com/dokzlo13/huesyncd/internal/transform"
)

// namespaceOrder fixes the processing order of a poll: groups must be
// indexed before scenes so group scenes can resolve their owner.
var namespaceOrder = []string{
	"config", "lights", "groups", "sensors", "scenes",
	"schedules", "rules", "resourcelinks",
}

// Config carries the flattening policy flags.
type Config struct {
	// Naming is NamingAppend or NamingPrepend.
	Naming string
	// Sync reports whether a namespace is mirrored.
	Sync func(namespace string) bool
	// SyncRecycled includes auto-recycled resources.
	SyncRecycled bool
	// BriWhenOff forces brightness/level to 0 while a light is off and
	// shadows the real value under real_brightness.
	BriWhenOff bool
}

// Flattener walks poll payloads into the store.
type Flattener struct {
	store store.Store
	reg   *Registry
	cfg   Config
}

// New creates a Flattener writing into the given store.
func New(st store.Store, reg *Registry, cfg Config) *Flattener {
	if cfg.Sync == nil {
		cfg.Sync = func(string) bool { return true }
	}
	return &Flattener{store: st, reg: reg, cfg: cfg}
}

// Registry returns the device registry fed by this flattener.
func (f *Flattener) Registry() *Registry { return f.reg }

// DateTime renders a timestamp the way the store exposes it.
func DateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04:05")
}

func ucFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lastSegment(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}

// idString renders a JSON id value (number or string) as a string key.
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// SyncPayload mirrors one full poll result into the store. groupZero,
// when present, is indexed as the virtual "All Lights" group.
func (f *Flattener) SyncPayload(payload map[string]json.RawMessage, groupZero map[string]any) {
	now := time.Now()
	f.WriteSyncState(true)

	f.indexDevices(payload, groupZero)

	for _, channel := range namespaceOrder {
		raw, ok := payload[channel]
		if !ok {
			continue
		}

		f.setChannelNode(channel, ucFirst(channel))

		if !f.cfg.Sync(channel) {
			f.setNode("info.syncing"+ucFirst(channel), false, "")
			f.setNode(channel+".syncing", false, "")
			continue
		}

		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			log.Warn().Str("channel", channel).Err(err).Msg("Skipping undecodable channel payload")
			continue
		}

		if channel == "groups" && groupZero != nil {
			if m, ok := data.(map[string]any); ok {
				m["0"] = groupZero
			}
		}

		f.setNode(channel+".datetime", DateTime(now), "")
		f.setNode(channel+".timestamp", now.Unix(), "")
		f.setNode(channel+".syncing", true, "")
		f.setNode("info.syncing"+ucFirst(channel), true, "")

		f.walk(channel, data, channel, "")
	}
}

// WriteSyncState flips the global syncing indicator, updating the
// last-update metadata when the tree is in sync.
func (f *Flattener) WriteSyncState(syncing bool) {
	if syncing {
		now := time.Now()
		f.setNode("info.datetime", DateTime(now), "")
		f.setNode("info.timestamp", now.Unix(), "")
	}
	f.setNode("info.syncing", syncing, "")
}

// Apply writes a subtree under a base key, resolving metadata for each
// leaf. The dispatcher records lastAction snapshots through it.
func (f *Flattener) Apply(baseKey string, data map[string]any, channel string) {
	f.walk(baseKey, data, channel, "")
}

// indexDevices registers DeviceRecords for every id-keyed namespace,
// regardless of sync toggles, so commands can route even for channels
// that are not mirrored.
func (f *Flattener) indexDevices(payload map[string]json.RawMessage, groupZero map[string]any) {
	for _, kind := range []string{"lights", "groups", "sensors", "scenes", "schedules", "rules"} {
		raw, ok := payload[kind]
		if !ok {
			continue
		}
		var objects map[string]map[string]any
		if err := json.Unmarshal(raw, &objects); err != nil {
			continue
		}
		if kind == "groups" && groupZero != nil {
			objects["0"] = groupZero
		}
		for uid, obj := range objects {
			name, _ := obj["name"].(string)
			rec := DeviceRecord{Kind: kind, UID: uid, Name: name}
			if lights, ok := obj["lights"].([]any); ok {
				for _, l := range lights {
					rec.Lights = append(rec.Lights, idString(l))
				}
			}
			if kind == "scenes" {
				rec.SceneType, _ = obj["type"].(string)
				if g, ok := obj["group"]; ok {
					rec.Group = idString(g)
				}
			}
			// keep a previously learned path until the walk refreshes it
			if prev, ok := f.reg.Get(kind, uid); ok {
				rec.Path = prev.Path
			}
			f.reg.Put(rec)
		}
	}
}

// leafArray reports whether an array under this key is a value, not a
// collection to recurse into.
func leafArray(key string) bool {
	return strings.HasSuffix(key, "xy") ||
		strings.HasSuffix(key, "lights") ||
		strings.HasSuffix(key, "sensors") ||
		strings.HasSuffix(key, "links")
}

func (f *Flattener) walk(key string, data any, channel, device string) {
	key = strings.ReplaceAll(key, " ", "_")

	switch value := data.(type) {
	case map[string]any:
		f.walkMap(key, value, channel, device)
	case []any:
		switch {
		case leafArray(key):
			f.writeLeaf(key, value, device)
		case channel == "rules" && strings.HasSuffix(key, ".actions"):
			f.walkMap(strings.TrimSuffix(key, ".actions")+".action", ruleActions(value), channel, device)
		default:
			indexed := make(map[string]any, len(value))
			for i, item := range value {
				indexed[fmt.Sprintf("%02d", i)] = item
			}
			f.walkMap(key, indexed, channel, device)
		}
	default:
		f.writeLeaf(key, value, device)
	}
}

// ruleActions turns a rule's actions array into per-action states
// carrying a trigger button and the replayable command JSON.
func ruleActions(actions []any) map[string]any {
	states := make(map[string]any, len(actions))
	for _, item := range actions {
		action, ok := item.(map[string]any)
		if !ok {
			continue
		}
		body, _ := action["body"].(map[string]any)
		fields := make([]string, 0, len(body))
		for field := range body {
			fields = append(fields, field)
		}
		options, err := json.Marshal(action)
		if err != nil {
			continue
		}
		name := Slug(strings.Join(fields, "-"))
		if name == "" {
			name = "action"
		}
		states[name] = map[string]any{"trigger": false, "options": string(options)}
	}
	return states
}

func (f *Flattener) walkMap(key string, data map[string]any, channel, device string) {
	if len(data) == 0 {
		return
	}

	// skip recycled resources unless configured
	if channel != "" && !f.cfg.SyncRecycled {
		if recycled, ok := data["recycle"].(bool); ok && recycled {
			log.Debug().Str("channel", channel).Str("key", key).Msg("Skipping recycled resource")
			return
		}
	}

	name, named := data["name"].(string)
	if named {
		device = name
		data["lastSeen"] = DateTime(time.Now())
	}

	// rename positional id segments to collision-safe slugs
	if named && channel != "" && channel != "config" && channel != "scenes" && channel != "resourcelinks" {
		uid := lastSegment(key)
		data["uid"] = uid
		segment := DeviceSegment(f.cfg.Naming, uid, name)
		key = key[:len(key)-len(uid)] + segment
		f.reg.SetPath(channel, uid, key)
	} else if named && channel == "scenes" {
		data["uid"] = lastSegment(key)
	} else if named && channel == "resourcelinks" {
		uid := lastSegment(key)
		data["uid"] = uid
		key = key[:len(key)-len(uid)] + Slug(name)
	}

	// scenes expose a trigger button
	if sceneType, _ := data["type"].(string); channel == "scenes" && (sceneType == "GroupScene" || sceneType == "LightScene") {
		data["action"] = map[string]any{"trigger": false}
	}

	// schedules and scenes store their literal command for replay
	if (channel == "schedules" || channel == "scenes") && strings.HasSuffix(key, ".command") {
		key = strings.TrimSuffix(key, ".command") + ".action"
		data = replayOptions(data, channel == "schedules")
	}

	// derived action fields for anything that carries brightness
	if bri, hasBri := numeric(data["bri"]); hasBri {
		data["level"] = transform.BrightnessToLevel(bri)
		data["scene"] = ""
		data["_commands"] = ""
		f.writeLastAction(strings.Replace(key, ".state", ".action", 1))
	}

	// store units: degrees and Kelvin
	if hue, ok := numeric(data["hue"]); ok {
		data["hue"] = transform.HueToDegrees(hue)
	}
	if ct, ok := numeric(data["ct"]); ok {
		data["ct"] = transform.MiredToKelvin(ct)
	}

	// synthesized color spaces, only when all three inputs are present
	bri, hasBri := numeric(data["bri"])
	sat, hasSat := numeric(data["sat"])
	hueDeg, hasHue := numeric(data["hue"])
	if hasBri && hasSat && hasHue {
		if _, ok := numeric(data["transitiontime"]); !ok {
			data["transitiontime"] = 4
		}
		level := transform.BrightnessToLevel(bri)
		hsv := transform.HSV{H: hueDeg, S: float64(transform.SaturationToPercent(sat)), V: float64(level)}
		rgb := transform.HSVToRGB(hsv)
		data["hsv"] = fmt.Sprintf("%d,%d,%d", int(hsv.H), int(hsv.S), int(hsv.V))
		data["rgb"] = fmt.Sprintf("%d,%d,%d", rgb.R, rgb.G, rgb.B)
		data["hex"] = transform.RGBToHex(rgb)
	} else if mode, _ := data["colormode"].(string); mode == "ct" && hasBri {
		// white-spectrum lights still get a color rendering
		if kelvin, ok := numeric(data["ct"]); ok {
			rgb := transform.CTToRGB(kelvin)
			data["rgb"] = fmt.Sprintf("%d,%d,%d", rgb.R, rgb.G, rgb.B)
			data["hex"] = transform.RGBToHex(rgb)
		}
	}

	// value-when-off policy: hide brightness while off, remember it
	if hasBri && f.cfg.BriWhenOff {
		actionKey := strings.Replace(key, ".state", ".action", 1)
		if on, ok := data["on"].(bool); ok && !on {
			data["bri"] = 0
			data["level"] = 0
		} else if ok && on {
			if real, _ := f.store.Get(actionKey + ".real_brightness"); real == nil || toFloat(real) != bri {
				f.store.Ack(actionKey+".real_brightness", bri)
			}
		}
	}

	// standardize field names
	for raw, v := range data {
		if !nodes.IsMapped(raw) {
			continue
		}
		if _, isMap := v.(map[string]any); !isMap {
			data[nodes.ToStandard(raw)] = v
			delete(data, raw)
		}
	}

	// scenes live under their owning group channel
	pathKey := ""
	description := ""
	if channel == "scenes" && named {
		var skip bool
		key, pathKey, description, skip = f.sceneChannel(key, data)
		if skip {
			return
		}
	}

	for childKey, childValue := range data {
		f.walk(key+pathKey+"."+childKey, childValue, channel, device)
	}

	if description == "" {
		if named {
			description = name
		} else {
			description = ucFirst(lastSegment(key))
		}
	}
	f.setChannelNode(key, description)
}

// replayOptions rewrites a stored bridge command (schedule or scene
// "command" object) into a trigger/options pair, stripping the
// /api/<user> prefix from the address.
func replayOptions(data map[string]any, withTrigger bool) map[string]any {
	if address, ok := data["address"].(string); ok && len(address) > 5 {
		if i := strings.Index(address[5:], "/"); i >= 0 {
			data["address"] = address[5+i+1:]
		}
	}
	options, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{"options": string(options)}
	if withTrigger {
		out["trigger"] = false
	}
	return out
}

// sceneChannel derives the key and sub-channel for a scene. Returns
// skip=true when the owning group is not indexed yet.
func (f *Flattener) sceneChannel(key string, data map[string]any) (newKey, pathKey, description string, skip bool) {
	sceneType, _ := data["type"].(string)
	name, _ := data["name"].(string)
	uid, _ := data["uid"].(string)
	parent := key[:len(key)-len(lastSegment(key))]

	switch sceneType {
	case "LightScene":
		var lights []string
		if list, ok := data["lights"].([]any); ok {
			for _, l := range list {
				lights = append(lights, idString(l))
			}
		}
		if len(lights) == 0 {
			return key, "", "", true
		}
		newKey = parent + "LightScenes"
		pathKey = "." + Slug(name) + "_" + strings.Join(lights, "-")
		description = "Light Scenes"
		f.setChannelNode(newKey+pathKey, fmt.Sprintf("Scene %s for lights %s", name, strings.Join(lights, ", ")))

	case "GroupScene":
		groupID := ""
		if g, ok := data["group"]; ok {
			groupID = idString(g)
		}
		group, ok := f.reg.Get("groups", groupID)
		if !ok || groupID == "" {
			log.Debug().Str("scene", name).Str("group", groupID).Msg("Groups not indexed yet, scene skipped for now")
			return key, "", "", true
		}
		newKey = parent + DeviceSegment(f.cfg.Naming, groupID, group.Name)
		pathKey = "." + Slug(name)
		description = "Scenes for Group " + group.Name
		f.setChannelNode(newKey+pathKey, "Scene "+name)

	default:
		return key, "", "", true
	}

	// two scenes sharing a name stay distinct via uid suffixing
	if existing, ok := f.store.Get(newKey + pathKey + ".uid"); ok {
		if existingUID, isStr := existing.(string); isStr && existingUID != "" && existingUID != uid {
			pathKey += "_" + uid
		}
	}

	f.reg.SetPath("scenes", uid, newKey+pathKey)
	return newKey, pathKey, description, false
}

// writeLastAction creates the lastAction subtree under an action key,
// preserving any previously recorded values.
func (f *Flattener) writeLastAction(actionKey string) {
	last := make(map[string]any, 5)
	for _, field := range []string{"timestamp", "datetime", "lastCommand", "lastResult", "error"} {
		value, _ := f.store.Get(actionKey + ".lastAction." + field)
		last[field] = value
	}
	f.walk(actionKey, map[string]any{"lastAction": last}, "", "")
}

func (f *Flattener) writeLeaf(key string, value any, device string) {
	node := nodes.Resolve(key)

	// leaf conversions
	if arr, ok := value.([]any); ok {
		value = transform.JoinArray(arr)
	}
	if node.Convert == nodes.ConvertTemperature {
		if v, ok := numeric(value); ok {
			value = transform.SensorTemperature(v)
		}
	}

	field := lastSegment(key)

	// controllable state/config leaves live under the action namespace
	if nodes.IsSubscribable(field) &&
		(strings.Contains(key, ".state."+field) || strings.Contains(key, ".config."+field)) {
		key = strings.Replace(key, ".state.", ".action.", 1)
		key = strings.Replace(key, ".config.", ".action.", 1)
		if i := strings.Index(key, ".action."); i >= 0 {
			f.setChannelNode(key[:i+len(".action")], "Action")
		}
	}

	// rule action triggers sit one level deeper than the action root,
	// so the check keys on the namespace, not on the direct parent
	writable := nodes.IsSubscribable(field) && strings.Contains(key, ".action.")

	description := node.Description
	if description == "" {
		description = ucFirst(field)
	}
	if !node.NoDevicePrefix && device != "" {
		description = device + " - " + description
	}

	f.store.Set(key, value, &store.Meta{
		Type:        string(node.Type),
		Role:        node.Role,
		Description: description,
		Unit:        node.Unit,
		States:      node.States,
		Writable:    writable,
	})

	if writable {
		f.store.Subscribe(key)
	}
}

// setNode writes an informational leaf with catalogue metadata.
func (f *Flattener) setNode(key string, value any, device string) {
	node := nodes.Resolve(key)
	description := node.Description
	if description == "" {
		description = ucFirst(lastSegment(key))
	}
	if !node.NoDevicePrefix && device != "" {
		description = device + " - " + description
	}
	f.store.Set(key, value, &store.Meta{
		Type:        string(node.Type),
		Role:        node.Role,
		Description: description,
		Unit:        node.Unit,
		States:      node.States,
	})
}

// setChannelNode registers a channel-level node with a human description.
func (f *Flattener) setChannelNode(key, description string) {
	f.store.Set(key, nil, &store.Meta{Role: "channel", Description: description})
}

// numeric extracts a float64 from a JSON number (or Go int).
func numeric(v any) (float64, bool) {
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

func toFloat(v any) float64 {
	f, _ := numeric(v)
	return f
}
