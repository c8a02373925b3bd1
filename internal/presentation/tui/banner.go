package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner with the running version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	lines := []string{
		` _     _                          _   `,
		`| |__ (_)_ __ ___   ___ _ __ __ _| |_ `,
		`| '_ \| | '__/ _ \ / __| '__/ _' | __|`,
		`| |_) | | | | (_) | (__| | | (_| | |_ `,
		`|_.__/|_|_|  \___/ \___|_|  \__,_|\__|`,
	}
	// Amber to rose gradient, one color per line.
	colors := []string{"#fbbf24", "#f59e0b", "#f97316", "#f43f5e", "#e11d48"}

	fmt.Println()
	for i, line := range lines {
		fmt.Println(termenv.String(line).Foreground(p.Color(colors[i%len(colors)])))
	}
	fmt.Println(termenv.String(fmt.Sprintf("  v%s", version)).Foreground(p.Color("#9ca3af")))
	fmt.Println()
}
