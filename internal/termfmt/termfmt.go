// Package termfmt wraps values in ANSI styles for the summary printed at the end of a run.  It's a
// trimmed-down take on @shabbyrobe's termfmt, originally
// https://raw.githubusercontent.com/shabbyrobe/golib/master/termfmt/termfmt.go (MIT).
package termfmt

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"
)

type Escape interface {
	Wrap(out string) string
}

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// SetEnabled turns styling on or off globally.  When off, values are printed plain.
func SetEnabled(on bool) { enabled.Store(on) }

func Enabled() bool { return enabled.Load() }

func With(escs ...Escape) Style { return (Style{}).With(escs...) }
func Bold() Style               { return (Style{}).Bold() }
func Fg(c C16Name) Style        { return (Style{}).Fg(c) }

// Style is a fmt.Formatter: the wrapped value is formatted with the caller's verb and flags and
// then escaped.
type Style struct {
	escapes []Escape
	v       any
}

var _ fmt.Formatter = Style{}

func (c Style) With(escs ...Escape) Style {
	// copy so that derived styles don't share a backing array.
	c.escapes = append(append([]Escape(nil), c.escapes...), escs...)
	return c
}

func (c Style) Bold() Style        { return c.With(BoldEscape{}) }
func (c Style) Fg(n C16Name) Style { return c.With(C16Color{Name: n}) }

func (c Style) V(v any) Style {
	c.v = v
	return c
}

func (c Style) Format(f fmt.State, verb rune) {
	v := printable(fmt.Sprintf(buildValueFormat(f, verb), c.v))
	if Enabled() {
		for i := len(c.escapes) - 1; i >= 0; i-- {
			v = c.escapes[i].Wrap(v)
		}
	}
	f.Write([]byte(v))
}

func buildValueFormat(f fmt.State, verb rune) string {
	s := "%"
	for _, flag := range " +-0#" {
		if f.Flag(int(flag)) {
			s += string(flag)
		}
	}
	if width, ok := f.Width(); ok {
		s += strconv.Itoa(width)
	}
	if prec, ok := f.Precision(); ok {
		s += "." + strconv.Itoa(prec)
	}
	return s + string(verb)
}

type BoldEscape struct{}

func (BoldEscape) Wrap(v string) string { return "\x1b[1m" + v + "\x1b[0m" }

type C16Name uint8

const (
	DefaultColor C16Name = iota

	Black
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	LightGrey

	DarkGrey
	LightRed
	LightGreen
	LightYellow
	LightBlue
	LightMagenta
	LightCyan
	White
)

type C16Color struct {
	Name C16Name
	Bg   bool
}

func (c C16Color) Wrap(out string) string {
	var cv uint8
	if c.Name == DefaultColor {
		cv = 39
	} else {
		// enum starts at one.  the lower 8 colours run from 30 to 37, the upper 8 from 90 to 97.
		cv = uint8(c.Name) - 1
		if c.Name < DarkGrey {
			cv += 30
		} else {
			cv += 90 - 8
		}
	}
	if c.Bg {
		cv += 10
	}
	return "\x1b[" + strconv.Itoa(int(cv)) + "m" + out + "\x1b[0m"
}

func printable(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, v)
}
