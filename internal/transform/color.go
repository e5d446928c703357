package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HSV is a color in HSV space: hue in degrees (0-360), saturation and
// value as percentages (0-100).
type HSV struct {
	H, S, V float64
}

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R, G, B int
}

// HSVToRGB converts HSV to RGB.
func HSVToRGB(c HSV) RGB {
	h := math.Mod(c.H, 360) / 60
	s := c.S / 100
	v := c.V / 100

	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}

	return RGB{
		R: clampInt(int(math.Round(r*255)), 0, 255),
		G: clampInt(int(math.Round(g*255)), 0, 255),
		B: clampInt(int(math.Round(b*255)), 0, 255),
	}
}

// RGBToHSV converts RGB to HSV.
func RGBToHSV(c RGB) HSV {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	var h float64
	switch {
	case delta == 0:
		h = 0
	case max == r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case max == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if max > 0 {
		s = delta / max * 100
	}

	return HSV{H: h, S: s, V: max * 100}
}

// CMYKToRGB converts CMYK percentages (0-100 each) to RGB.
func CMYKToRGB(c, m, y, k float64) RGB {
	return RGB{
		R: clampInt(int(math.Round(255*(1-c/100)*(1-k/100))), 0, 255),
		G: clampInt(int(math.Round(255*(1-m/100)*(1-k/100))), 0, 255),
		B: clampInt(int(math.Round(255*(1-y/100)*(1-k/100))), 0, 255),
	}
}

// XYZToRGB converts CIE XYZ (0-100 scale, D65) to sRGB.
func XYZToRGB(x, y, z float64) RGB {
	x /= 100
	y /= 100
	z /= 100

	r := x*3.2406 + y*-1.5372 + z*-0.4986
	g := x*-0.9689 + y*1.8758 + z*0.0415
	b := x*0.0557 + y*-0.204 + z*1.057

	gamma := func(v float64) int {
		if v > 0.0031308 {
			v = 1.055*math.Pow(v, 1/2.4) - 0.055
		} else {
			v *= 12.92
		}
		return clampInt(int(math.Round(v*255)), 0, 255)
	}
	return RGB{R: gamma(r), G: gamma(g), B: gamma(b)}
}

// RGBToHex renders a color as an uppercase hex string without prefix.
func RGBToHex(c RGB) string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// HexToRGB parses a hex color string, with or without a leading '#'.
func HexToRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("%w: hex %q", ErrInvalidColorValue, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: hex %q", ErrInvalidColorValue, s)
	}
	return RGB{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}

// RGBToXY converts RGB to a CIE xy pair using the gamma-corrected
// Wide-RGB-D65 matrix published for Hue lights. Used when the prefer-xy
// policy rewrites hue/sat commands for third-party hardware.
func RGBToXY(c RGB) [2]float64 {
	inv := func(v int) float64 {
		f := float64(v) / 255
		if f > 0.04045 {
			return math.Pow((f+0.055)/1.055, 2.4)
		}
		return f / 12.92
	}
	r := inv(c.R)
	g := inv(c.G)
	b := inv(c.B)

	x := r*0.664511 + g*0.154324 + b*0.162028
	y := r*0.283881 + g*0.668433 + b*0.047685
	z := r*0.000088 + g*0.07231 + b*0.986039

	sum := x + y + z
	if sum == 0 {
		return [2]float64{0, 0}
	}
	round4 := func(v float64) float64 { return math.Round(v*10000) / 10000 }
	return [2]float64{round4(x / sum), round4(y / sum)}
}

// CTToRGB approximates the RGB rendering of a color temperature in
// Kelvin (Tanner Helland's curve fit).
func CTToRGB(kelvin float64) RGB {
	ct := kelvin / 100

	var r, g, b float64
	if ct <= 66 {
		r = 255
		g = 99.4708025861*math.Log(ct) - 161.1195681661
		if ct <= 19 {
			b = 0
		} else {
			b = 138.5177312231*math.Log(ct-10) - 305.0447927307
		}
	} else {
		r = 329.698727446 * math.Pow(ct-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(ct-60, -0.0755148492)
		b = 255
	}

	return RGB{
		R: clampInt(int(math.Round(r)), 0, 255),
		G: clampInt(int(math.Round(g)), 0, 255),
		B: clampInt(int(math.Round(b)), 0, 255),
	}
}

// ParseColor interprets a store-written color string in the given space
// (rgb, hsv, cmyk, xyz or hex) and returns its HSV form. Component lists
// are comma separated.
func ParseColor(space, value string) (HSV, error) {
	parseFloats := func(n int) ([]float64, error) {
		parts := strings.Split(value, ",")
		if len(parts) != n {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidColorValue, space, value)
		}
		out := make([]float64, n)
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %q", ErrInvalidColorValue, space, value)
			}
			out[i] = f
		}
		return out, nil
	}

	switch space {
	case "rgb":
		v, err := parseFloats(3)
		if err != nil {
			return HSV{}, err
		}
		return RGBToHSV(RGB{R: int(v[0]), G: int(v[1]), B: int(v[2])}), nil
	case "hsv":
		v, err := parseFloats(3)
		if err != nil {
			return HSV{}, err
		}
		return HSV{H: v[0], S: v[1], V: v[2]}, nil
	case "cmyk":
		v, err := parseFloats(4)
		if err != nil {
			return HSV{}, err
		}
		return RGBToHSV(CMYKToRGB(v[0], v[1], v[2], v[3])), nil
	case "xyz":
		v, err := parseFloats(3)
		if err != nil {
			return HSV{}, err
		}
		return RGBToHSV(XYZToRGB(v[0], v[1], v[2])), nil
	case "hex":
		rgb, err := HexToRGB(value)
		if err != nil {
			return HSV{}, err
		}
		return RGBToHSV(rgb), nil
	default:
		return HSV{}, fmt.Errorf("%w: unknown color space %q", ErrInvalidColorValue, space)
	}
}
