package protocol

import (
	"sort"
	"strings"
)

// RGBToHSV converts an 8-bit RGB triple to the device's HSV encoding: hue in
// half-degree units [0,180), saturation and value in [0,100]. Inputs are
// clamped to [0,255].
//
// The conversion is intentionally lossy. Hue degrees are divided by two and
// truncated toward zero, and saturation/value are truncated toward zero after
// scaling. The truncation direction must not change: stored state written by
// earlier versions is compared against re-encoded values bit for bit.
func RGBToHSV(r, g, b int) (h, s, v int) {
	rf := float64(clamp(r, 0, 255)) / 255.0
	gf := float64(clamp(g, 0, 255)) / 255.0
	bf := float64(clamp(b, 0, 255)) / 255.0

	max := rf
	if gf > max {
		max = gf
	}
	if bf > max {
		max = bf
	}
	min := rf
	if gf < min {
		min = gf
	}
	if bf < min {
		min = bf
	}

	v = int(max * 100)
	delta := max - min
	if delta == 0 || max == 0 {
		// Gray, including black and white: hue is defined as zero.
		return 0, 0, v
	}
	s = int(delta / max * 100)

	var degrees float64
	switch max {
	case rf:
		degrees = 60 * ((gf - bf) / delta)
	case gf:
		degrees = 60 * ((bf-rf)/delta + 2)
	default:
		degrees = 60 * ((rf-gf)/delta + 4)
	}
	if degrees < 0 {
		degrees += 360
	}
	h = int(degrees / 2)
	return h, s, v
}

// presets are the named colors exposed by the invocable command surface.
// Hues are in device half-degree units.
var presets = map[string][3]int{
	"red":        {0, 100, 100},
	"orange":     {15, 100, 100},
	"yellow":     {30, 100, 100},
	"green":      {60, 100, 100},
	"cyan":       {90, 100, 100},
	"blue":       {120, 100, 100},
	"purple":     {138, 100, 100},
	"magenta":    {150, 100, 100},
	"pink":       {165, 45, 100},
	"white":      {0, 0, 100},
	"warm-white": {15, 25, 100},
	"cool-white": {120, 10, 100},
}

// Preset returns the HSV components of a named color. The lookup is
// case-insensitive.
func Preset(name string) (h, s, v int, ok bool) {
	hsv, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, 0, 0, false
	}
	return hsv[0], hsv[1], hsv[2], true
}

// PresetNames returns the available preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
