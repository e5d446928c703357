// Package nodes holds the static field metadata catalogue for the Hue
// bridge state tree, the resolver that picks the most specific entry for
// a dotted key, and the raw/standard field name mapping table.
package nodes

// ValueType is the store-facing type of a leaf value.
type ValueType string

const (
	TypeBoolean ValueType = "boolean"
	TypeNumber  ValueType = "number"
	TypeString  ValueType = "string"
)

// Convert names a value conversion applied when flattening a leaf.
type Convert string

const (
	ConvertNone        Convert = ""
	ConvertString      Convert = "string"      // array joined to a comma string
	ConvertTemperature Convert = "temperature" // raw sensor value / 100
)

// Node describes a single field of the state tree.
type Node struct {
	Description string
	Role        string
	Type        ValueType
	Convert     Convert
	Unit        string
	States      map[string]string // enumerated values, if any
	// NoDevicePrefix suppresses the "<device name> - " description prefix.
	NoDevicePrefix bool
}

// DefaultNode is returned when no catalogue entry matches a key.
var DefaultNode = Node{
	Description: "(no description given)",
	Role:        "text",
	Type:        TypeString,
}

// catalogue maps dotted field paths (id segments stripped) to metadata.
// Entries without a namespace prefix apply to any trailing field name.
var catalogue = map[string]Node{
	"datetime":  {Description: "Datetime of last update", Role: "text", Type: TypeString, NoDevicePrefix: true},
	"timestamp": {Description: "Timestamp of last update", Role: "value", Type: TypeNumber, NoDevicePrefix: true},
	"syncing":   {Description: "Indicates whether the channel is synced", Role: "indicator", Type: TypeBoolean, NoDevicePrefix: true},

	// actions
	"on":         {Description: "Switch light on / off", Role: "switch.light", Type: TypeBoolean},
	"brightness": {Description: "Brightness of the light between 0 and 254", Role: "level.dimmer", Type: TypeNumber},
	"hue":        {Description: "Hue of the light between 0 and 360 degrees", Role: "level.color.hue", Type: TypeNumber, Unit: "°"},
	"saturation": {Description: "Saturation of the light between 0 and 254", Role: "level.color.saturation", Type: TypeNumber},
	"xy":         {Description: "The x and y coordinates in CIE color space", Role: "level.color.xy", Type: TypeString, Convert: ConvertString},
	"color_temperature": {
		Description: "Color temperature of the light in Kelvin", Role: "level.color.temperature", Type: TypeNumber, Unit: "K",
	},
	"alert": {
		Description: "The alert effect, a temporary change to the bulb's state", Role: "switch", Type: TypeString,
		States: map[string]string{"none": "No alert", "select": "One breathe cycle", "lselect": "Breathe cycles for 15s"},
	},
	"effect": {
		Description: "The dynamic effect of the light", Role: "switch", Type: TypeString,
		States: map[string]string{"none": "No effect", "colorloop": "Cycle through all hues"},
	},
	"transitiontime": {Description: "Duration of the transition as a multiple of 100ms, defaults to 4 (400ms)", Role: "value", Type: TypeNumber},
	"color_mode":     {Description: "Indicates the color mode in which the light is working", Role: "indicator.colormode", Type: TypeString},
	"level":          {Description: "Level of the light between 0% and 100%", Role: "level.dimmer", Type: TypeNumber, Unit: "%"},
	"scene":          {Description: "Apply scene on light or group", Role: "switch.scene", Type: TypeString},
	"trigger":        {Description: "Trigger scene on light or group", Role: "button", Type: TypeBoolean},
	"rgb":            {Description: "RGB (red, green, blue) color space", Role: "level.color.rgb", Type: TypeString},
	"hsv":            {Description: "HSV (hue, saturation, value / brightness) color space", Role: "level.color.hsv", Type: TypeString},
	"cmyk":           {Description: "CMYK (cyan, magenta, yellow and key / black) color space", Role: "level.color.cmyk", Type: TypeString},
	"xyz":            {Description: "XYZ / CIE color space", Role: "level.color.xyz", Type: TypeString},
	"hex":            {Description: "Hex representation of the color", Role: "level.color.hex", Type: TypeString},
	"_commands":      {Description: "Apply multiple commands on the device", Role: "switch", Type: TypeString},
	"options":        {Description: "Stored command replayed on trigger", Role: "text", Type: TypeString},

	// lights
	"lights.capabilities.control.ct.max":        {Role: "value", Type: TypeNumber},
	"lights.capabilities.control.ct.min":        {Role: "value", Type: TypeNumber},
	"lights.capabilities.control.colorgamuttype": {Role: "text", Type: TypeString},
	"lights.capabilities.control.maxlumen":      {Role: "value", Type: TypeNumber},
	"lights.capabilities.control.mindimlevel":   {Role: "value", Type: TypeNumber},
	"lights.capabilities.streaming.proxy":       {Description: "Lamp can be used for entertainment streaming as a proxy node", Role: "indicator", Type: TypeBoolean},
	"lights.capabilities.streaming.renderer":    {Description: "Lamp can be used for entertainment streaming as renderer", Role: "indicator", Type: TypeBoolean},
	"lights.capabilities.certified":             {Description: "Indicates if lamp is official Philips", Role: "indicator", Type: TypeBoolean},

	"lights.config.startup.configured": {Role: "indicator", Type: TypeBoolean},
	"lights.config.startup.mode":       {Role: "text", Type: TypeString},
	"lights.config.archetype":          {Role: "text", Type: TypeString},
	"lights.config.direction":          {Role: "text", Type: TypeString},
	"lights.config.function":           {Role: "text", Type: TypeString},

	"lights.state.mode":      {Description: "Mode of the light", Role: "text", Type: TypeString},
	"lights.state.reachable": {Description: "Indicates if light can be reached by the bridge", Role: "indicator.reachable", Type: TypeBoolean},

	"lights.swupdate.lastinstall": {Description: "Time of last software update", Role: "text", Type: TypeString},
	"lights.swupdate.state":       {Description: "State of software update for the system", Role: "text", Type: TypeString},

	"lights.manufacturername": {Description: "The manufacturer name", Role: "text", Type: TypeString},
	"lights.modelid":          {Description: "The hardware model of the light", Role: "text", Type: TypeString},
	"lights.name":             {Description: "A unique, editable name given to the light", Role: "text", Type: TypeString},
	"lights.productid":        {Description: "Product ID", Role: "text", Type: TypeString},
	"lights.productname":      {Description: "Product Name", Role: "text", Type: TypeString},
	"lights.swconfigid":       {Description: "Software configuration ID", Role: "text", Type: TypeString},
	"lights.swversion":        {Description: "Software version", Role: "text", Type: TypeString},
	"lights.type":             {Description: "A fixed name describing the type of light", Role: "text", Type: TypeString},
	"lights.uid":              {Description: "Unique ID of the light", Role: "value", Type: TypeNumber},
	"lights.uniqueid":         {Description: "MAC address of the device with a unique endpoint id", Role: "text", Type: TypeString},

	// groups
	"groups.state.all_on": {Description: "Indicates if all lights of the group are turned on", Role: "indicator", Type: TypeBoolean},
	"groups.state.any_on": {Description: "Indicates if any light of the group is turned on", Role: "indicator", Type: TypeBoolean},

	"groups.class":   {Description: "Category of room types", Role: "text", Type: TypeString},
	"groups.name":    {Description: "A unique, editable name given to the group", Role: "text", Type: TypeString},
	"groups.lights":  {Description: "IDs of the lights in the group", Role: "text", Type: TypeString, Convert: ConvertString},
	"groups.sensors": {Description: "IDs of the sensors in the group", Role: "text", Type: TypeString, Convert: ConvertString},
	"groups.recycle": {Description: "Resource is automatically deleted when not referenced anymore", Role: "indicator", Type: TypeBoolean},
	"groups.type":    {Description: "Type of group", Role: "text", Type: TypeString},
	"groups.uid":     {Description: "Unique ID of the group", Role: "value", Type: TypeNumber},

	// sensors
	"sensors.capabilities.certified": {Description: "Indicates if sensor is official Philips", Role: "indicator", Type: TypeBoolean},
	"sensors.capabilities.primary":   {Role: "indicator", Type: TypeBoolean},

	"sensors.config.battery":       {Description: "Current battery level", Role: "value.battery", Type: TypeNumber, Unit: "%"},
	"sensors.config.configured":    {Role: "indicator", Type: TypeBoolean},
	"sensors.config.reachable":     {Description: "Indicates if sensor can be reached by the bridge", Role: "indicator.reachable", Type: TypeBoolean},
	"sensors.config.on":            {Role: "indicator", Type: TypeBoolean},
	"sensors.config.sunriseoffset": {Role: "value", Type: TypeNumber},
	"sensors.config.sunsetoffset":  {Role: "value", Type: TypeNumber},

	"sensors.state.buttonevent": {Description: "Event of the button", Role: "value", Type: TypeNumber},
	"sensors.state.flag":        {Description: "Flag", Role: "indicator", Type: TypeBoolean},
	"sensors.state.temperature": {Description: "Temperature", Role: "value.temperature", Type: TypeNumber, Unit: "°C", Convert: ConvertTemperature},
	"sensors.state.daylight":    {Description: "Indicates daylight", Role: "indicator", Type: TypeBoolean},
	"sensors.state.status":      {Description: "Status", Role: "value", Type: TypeNumber},
	"sensors.state.lastupdated": {Description: "Last update", Role: "text", Type: TypeString},

	"sensors.swupdate.lastinstall": {Description: "Time of last software update", Role: "text", Type: TypeString},
	"sensors.swupdate.state":       {Description: "State of software update for the system", Role: "text", Type: TypeString},

	"sensors.manufacturername": {Description: "The manufacturer name", Role: "text", Type: TypeString},
	"sensors.modelid":          {Description: "The hardware model of the sensor", Role: "text", Type: TypeString},
	"sensors.name":             {Description: "A unique, editable name given to the sensor", Role: "text", Type: TypeString},
	"sensors.recycle":          {Description: "Resource is automatically deleted when not referenced anymore", Role: "indicator", Type: TypeBoolean},
	"sensors.swversion":        {Description: "Software version", Role: "text", Type: TypeString},
	"sensors.type":             {Role: "text", Type: TypeString},
	"sensors.uid":              {Description: "Unique ID of the sensor", Role: "value", Type: TypeNumber},
	"sensors.uniqueid":         {Description: "Unique ID of the sensor", Role: "text", Type: TypeString},

	// scenes
	"scenes.appdata.data":    {Description: "App specific data (free format string)", Role: "text", Type: TypeString},
	"scenes.appdata.version": {Description: "App specific version of the data field", Role: "value", Type: TypeNumber},
	"scenes.group":           {Description: "Group ID that a scene is linked to", Role: "value", Type: TypeNumber},
	"scenes.lights":          {Description: "IDs of the lights the scene applies to", Role: "text", Type: TypeString, Convert: ConvertString},
	"scenes.lastupdated":     {Description: "UTC time the scene has been created or updated by a PUT", Role: "text", Type: TypeString},
	"scenes.locked":          {Description: "Scene is locked by a rule or schedule and cannot be deleted", Role: "indicator", Type: TypeBoolean},
	"scenes.name":            {Description: "Human readable name of the scene", Role: "text", Type: TypeString},
	"scenes.owner":           {Description: "Whitelist user that created or modified the content of the scene", Role: "text", Type: TypeString},
	"scenes.picture":         {Description: "Individual scene picture", Role: "text", Type: TypeString},
	"scenes.recycle":         {Description: "Scene can be automatically deleted by the bridge", Role: "indicator", Type: TypeBoolean},
	"scenes.type":            {Description: "Type of the scene (LightScene or GroupScene)", Role: "text", Type: TypeString},
	"scenes.uid":             {Description: "The id of the scene being modified or created", Role: "text", Type: TypeString},
	"scenes.version": {
		Description: "Version of scene document", Role: "value", Type: TypeNumber,
		States: map[string]string{"1": "Scene created via PUT, lightstates empty", "2": "Scene created via POST, lightstates available"},
	},

	// schedules
	"schedules.name":        {Description: "Name of the schedule", Role: "text", Type: TypeString},
	"schedules.description": {Description: "Description of the schedule", Role: "text", Type: TypeString},
	"schedules.status":      {Description: "Schedule is enabled or disabled", Role: "text", Type: TypeString},
	"schedules.localtime":   {Description: "Local time of the schedule", Role: "text", Type: TypeString},
	"schedules.created":     {Description: "UTC time the schedule was created", Role: "text", Type: TypeString},
	"schedules.autodelete":  {Description: "Schedule is removed after it expires", Role: "indicator", Type: TypeBoolean},
	"schedules.recycle":     {Description: "Resource is automatically deleted when not referenced anymore", Role: "indicator", Type: TypeBoolean},

	// rules
	"rules.name":           {Description: "Name of the rule", Role: "text", Type: TypeString},
	"rules.owner":          {Description: "Whitelist user that created the rule", Role: "text", Type: TypeString},
	"rules.status":         {Description: "Rule is enabled or disabled", Role: "text", Type: TypeString},
	"rules.created":        {Description: "UTC time the rule was created", Role: "text", Type: TypeString},
	"rules.lasttriggered":  {Description: "UTC time the rule was last triggered", Role: "text", Type: TypeString},
	"rules.timestriggered": {Description: "Number of times the rule was triggered", Role: "value", Type: TypeNumber},

	// config (bridge device itself)
	"config.name":             {Description: "Name of the bridge", Role: "text", Type: TypeString},
	"config.bridgeid":         {Description: "The unique bridge id", Role: "text", Type: TypeString},
	"config.modelid":          {Description: "The hardware model of the bridge", Role: "text", Type: TypeString},
	"config.swversion":        {Description: "Software version of the bridge", Role: "text", Type: TypeString},
	"config.apiversion":       {Description: "The version of the Hue API", Role: "text", Type: TypeString},
	"config.zigbeechannel":    {Description: "The current wireless frequency channel used by the bridge", Role: "value", Type: TypeNumber},
	"config.dhcp":             {Description: "Whether the IP address of the bridge is obtained with DHCP", Role: "indicator", Type: TypeBoolean},
	"config.ipaddress":        {Description: "IP address of the bridge", Role: "text", Type: TypeString},
	"config.linkbutton":       {Description: "Indicates whether the link button has been pressed", Role: "indicator", Type: TypeBoolean},
	"config.portalconnection": {Description: "Status of the portal connection", Role: "text", Type: TypeString},
}

// lookup returns the catalogue entry for an exact key, if present.
func lookup(key string) (Node, bool) {
	n, ok := catalogue[key]
	return n, ok
}
