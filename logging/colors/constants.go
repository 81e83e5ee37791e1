package colors

// Color is an ANSI SGR code.
type Color int

// Codes taken from zerolog's console writer.
const (
	// BLACK is the ANSI code for black
	BLACK Color = iota + 30
	// RED is the ANSI code for red
	RED
	// GREEN is the ANSI code for green
	GREEN
	// YELLOW is the ANSI code for yellow
	YELLOW
	// BLUE is the ANSI code for blue
	BLUE
	// MAGENTA is the ANSI code for magenta
	MAGENTA
	// CYAN is the ANSI code for cyan
	CYAN
	// WHITE is the ANSI code for white
	WHITE
	// BOLD is the ANSI code for bold text
	BOLD = 1
	// DARK_GRAY is the ANSI code for dark gray
	DARK_GRAY = 90
)

// Glyphs used for console output.
const (
	// LEFT_ARROW prefixes info-level console lines.
	LEFT_ARROW = "⇾"
	// CHECK marks a passing test.
	CHECK = "✔"
	// CROSS marks a failing test.
	CROSS = "✘"
)
