package display

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultPWMRoot is where the kernel exposes PWM chips.
const DefaultPWMRoot = "/sys/class/pwm"

// LEDConfig configures an LED sink on an exported PWM channel.
type LEDConfig struct {
	// Root is the PWM class directory; empty uses DefaultPWMRoot.
	Root     string
	Chip     int
	Channel  int
	PeriodNs int64
}

// LED drives an indicator LED through the sysfs PWM duty cycle. The channel
// must already be exported, configured with PeriodNs and enabled.
type LED struct {
	path     string
	periodNs int64
	last     int64
}

// NewLED returns an LED sink for cfg. It fails if the channel is not exported.
func NewLED(cfg LEDConfig) (*LED, error) {
	root := cfg.Root
	if root == "" {
		root = DefaultPWMRoot
	}
	if cfg.PeriodNs <= 0 {
		return nil, fmt.Errorf("invalid PWM period %d ns", cfg.PeriodNs)
	}

	path := filepath.Join(root, fmt.Sprintf("pwmchip%d", cfg.Chip), fmt.Sprintf("pwm%d", cfg.Channel), "duty_cycle")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("PWM channel not available: %w", err)
	}

	return &LED{path: path, periodNs: cfg.PeriodNs, last: -1}, nil
}

// SetBrightness writes duty·period to the duty cycle file. Unchanged values
// are not rewritten.
func (l *LED) SetBrightness(duty float64) error {
	if math.IsNaN(duty) {
		duty = 0
	}
	duty = min(max(duty, 0), 1)

	ns := int64(math.Round(duty * float64(l.periodNs)))
	if ns == l.last {
		return nil
	}

	if err := os.WriteFile(l.path, []byte(strconv.FormatInt(ns, 10)), 0o644); err != nil {
		return fmt.Errorf("write PWM duty cycle: %w", err)
	}
	l.last = ns
	return nil
}

// WriteRow implements Sink. The LED has no rows.
func (l *LED) WriteRow(int, []byte) error {
	return nil
}

// Close turns the LED off.
func (l *LED) Close() error {
	return l.SetBrightness(0)
}
