package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the CLI banner, colored when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`   ___                _            _             `, "#818cf8"},
		{`  / __\___  _ __   __| |_   _  ___| |_ ___  _ __ `, "#a78bfa"},
		{` / /  / _ \| '_ \ / _' | | | |/ __| __/ _ \| '__|`, "#c084fc"},
		{`/ /__| (_) | | | | (_| | |_| | (__| || (_) | |   `, "#e879f9"},
		{`\____/\___/|_| |_|\__,_|\__,_|\___|\__\___/|_|   `, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
