package lamp

import (
	"context"
	"fmt"
	"strings"

	"github.com/halolight/lamp-command/pkg/protocol"
)

const (
	halfIntensity = 50
	fullIntensity = 100
)

// PowerOn turns the lamp on.
func (l *Lamp) PowerOn(ctx context.Context) (Result, error) {
	return l.setPower(ctx, true)
}

// PowerOff turns the lamp off.
func (l *Lamp) PowerOff(ctx context.Context) (Result, error) {
	return l.setPower(ctx, false)
}

func (l *Lamp) setPower(ctx context.Context, on bool) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	saved.SetPower(on)
	if err := l.transmit(ctx, saved, protocol.Power(on)); err != nil {
		return Result{}, err
	}
	return Result{Message: powerMessage(on)}, nil
}

// TogglePower flips the stored power state. With no stored state the lamp is
// turned on, and the message says so; two consecutive toggles return to the
// original state.
func (l *Lamp) TogglePower(ctx context.Context) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	unknown := saved.Power == nil
	target := true
	if !unknown {
		target = !*saved.Power
	}
	saved.SetPower(target)
	if err := l.transmit(ctx, saved, protocol.Power(target)); err != nil {
		return Result{}, err
	}
	if unknown {
		return Result{Message: "Lamp state was unknown; turned it on."}, nil
	}
	return Result{Message: powerMessage(target)}, nil
}

// ToggleIntensity switches brightness between 50% and 100%, carrying the
// stored hue and saturation so color identity survives the brightness-only
// update. Unknown brightness toggles to 100%.
func (l *Lamp) ToggleIntensity(ctx context.Context) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	h, s, v, known := saved.HSV()
	target := fullIntensity
	if known && v > halfIntensity {
		target = halfIntensity
	}
	saved.SetHSV(h, s, target)
	if err := l.transmit(ctx, saved, protocol.Color(h, s, target)); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Brightness set to %d%%.", target)}, nil
}

// SetBrightness sets the value component to level (clamped to [0,100]),
// carrying the stored hue and saturation.
func (l *Lamp) SetBrightness(ctx context.Context, level int) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	h, s, _, _ := saved.HSV()
	saved.SetHSV(h, s, level)
	if err := l.transmit(ctx, saved, protocol.Color(h, s, level)); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Brightness set to %d%%.", level)}, nil
}

// SetColor sets one of the named preset colors.
func (l *Lamp) SetColor(ctx context.Context, name string) (Result, error) {
	h, s, v, ok := protocol.Preset(name)
	if !ok {
		return Result{}, fmt.Errorf("unknown color %q; available colors: %s",
			name, strings.Join(protocol.PresetNames(), ", "))
	}
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	saved.SetHSV(h, s, v)
	if err := l.transmit(ctx, saved, protocol.Color(h, s, v)); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Color set to %s.", strings.ToLower(strings.TrimSpace(name)))}, nil
}

// SetRGB sets an arbitrary 8-bit RGB color, converted to the device's HSV
// encoding.
func (l *Lamp) SetRGB(ctx context.Context, r, g, b int) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	h, s, v := protocol.RGBToHSV(r, g, b)
	saved.SetHSV(h, s, v)
	if err := l.transmit(ctx, saved, protocol.Color(h, s, v)); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("Color set to RGB(%d, %d, %d).", r, g, b)}, nil
}

func powerMessage(on bool) string {
	if on {
		return "Lamp turned on."
	}
	return "Lamp turned off."
}
