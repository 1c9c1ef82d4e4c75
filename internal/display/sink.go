// Package display implements the outputs the meter loop draws to.
package display

import "errors"

// Sink receives rendered bar graph rows and the LED brightness once per cycle.
type Sink interface {
	// WriteRow replaces row with the given glyph codes.
	WriteRow(row int, glyphs []byte) error
	// SetBrightness sets the indicator duty fraction on [0, 1].
	SetBrightness(duty float64) error
	// Close releases the output.
	Close() error
}

// Splasher is implemented by sinks that can show a line of text before
// metering starts.
type Splasher interface {
	Splash(text string) error
}

// Multi fans every call out to all sinks and joins their errors.
type Multi []Sink

// WriteRow implements Sink.
func (m Multi) WriteRow(row int, glyphs []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRow(row, glyphs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetBrightness implements Sink.
func (m Multi) SetBrightness(duty float64) error {
	var errs []error
	for _, s := range m {
		if err := s.SetBrightness(duty); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Splash shows text on every sink that supports it.
func (m Multi) Splash(text string) error {
	var errs []error
	for _, s := range m {
		if sp, ok := s.(Splasher); ok {
			if err := sp.Splash(text); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a Sink that drops everything.
type Discard struct{}

// WriteRow implements Sink.
func (Discard) WriteRow(int, []byte) error { return nil }

// SetBrightness implements Sink.
func (Discard) SetBrightness(float64) error { return nil }

// Close implements Sink.
func (Discard) Close() error { return nil }
