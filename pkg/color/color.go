// Package color styles the report text. Colors follow the terminal's
// detected profile and are switched off for NO_COLOR or a dumb terminal.
package color

import (
	"os"

	"github.com/muesli/termenv"
)

// ANSI palette indices.
const (
	Red     = "1"
	Green   = "2"
	Yellow  = "3"
	Blue    = "4"
	Magenta = "5"
	Cyan    = "6"
	Gray    = "8"

	BrightRed   = "9"
	BrightGreen = "10"
)

var profile = termenv.Ascii

func init() {
	EnableColor(os.Getenv("NO_COLOR") == "" && isTerminal())
}

func isTerminal() bool {
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// EnableColor switches styling on or off.
func EnableColor(enable bool) {
	if !enable {
		profile = termenv.Ascii
		return
	}
	profile = termenv.ColorProfile()
	if profile == termenv.Ascii {
		profile = termenv.ANSI
	}
}

func IsColorEnabled() bool {
	return profile != termenv.Ascii
}

// Colorize paints text with a palette color.
func Colorize(color, text string) string {
	if !IsColorEnabled() {
		return text
	}
	return termenv.String(text).Foreground(profile.Color(color)).String()
}

func RedText(text string) string       { return Colorize(Red, text) }
func BrightRedText(text string) string { return Colorize(BrightRed, text) }
func GreenText(text string) string     { return Colorize(Green, text) }
func YellowText(text string) string    { return Colorize(Yellow, text) }
func BlueText(text string) string      { return Colorize(Blue, text) }
func CyanText(text string) string      { return Colorize(Cyan, text) }
func GrayText(text string) string      { return Colorize(Gray, text) }

func BoldText(text string) string {
	if !IsColorEnabled() {
		return text
	}
	return termenv.String(text).Bold().String()
}

// Pass and Fail mark a scenario outcome.
func Pass(name string) string {
	return GreenText("PASS") + " " + name
}

func Fail(name string) string {
	return BrightRedText(BoldText("FAIL")) + " " + name
}

func Error(message string) string {
	return BrightRedText("Error: ") + message
}

// Stat renders a "name value" report line.
func Stat(name, value string) string {
	return CyanText(name) + " " + YellowText(value)
}
