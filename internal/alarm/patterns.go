// Package alarm plays named tone patterns on an exclusively owned device.
package alarm

import "time"

// Step is one tone. A zero frequency is silence for Duration.
type Step struct {
	FrequencyHz float64
	Duration    time.Duration
}

type Pattern []Step

// RepeatPause separates passes of a repeating pattern.
const RepeatPause = 500 * time.Millisecond

const (
	DefaultBeep = "Default Beep"
	HighLow     = "High-Low"
	Intercom    = "Intercom"
	None        = "None"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

var patterns = map[string]Pattern{
	DefaultBeep: {{880, ms(100)}, {0, ms(100)}, {880, ms(100)}},
	HighLow:     {{1200, ms(150)}, {600, ms(150)}},
	Intercom:    {{1046.50, ms(200)}, {0, ms(50)}, {830.61, ms(200)}},
	None:        {},
}

var names = []string{DefaultBeep, HighLow, Intercom, None}

// Names lists the patterns in display order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Lookup returns a copy of the named pattern.
func Lookup(name string) (Pattern, bool) {
	p, ok := patterns[name]
	if !ok {
		return nil, false
	}
	out := make(Pattern, len(p))
	copy(out, p)
	return out, true
}

// Duration is the length of one pass.
func (p Pattern) Duration() time.Duration {
	var d time.Duration
	for _, s := range p {
		d += s.Duration
	}
	return d
}
