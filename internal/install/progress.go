package install

import (
	"fmt"
	"io"
	"os"
)

var (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func init() {
	// Check if output is a terminal
	if stat, err := os.Stdout.Stat(); err == nil {
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			// Not a terminal, disable colors
			colorGreen = ""
			colorRed = ""
			colorYellow = ""
			colorReset = ""
		}
	}
}

// progress prints one status line per setup step.
type progress struct {
	out io.Writer
}

// begin prints a step description padded to the status column.
func (p progress) begin(msg string) {
	fmt.Fprintf(p.out, "%-70s", msg+"...")
}

// ok closes a line opened by begin.
func (p progress) ok() {
	fmt.Fprintf(p.out, "%s[OK]%s\n", colorGreen, colorReset)
}

// fail closes a line opened by begin.
func (p progress) fail() {
	fmt.Fprintf(p.out, "%s[FAIL]%s\n", colorRed, colorReset)
}

// success prints a complete success line
func (p progress) success(msg string) {
	fmt.Fprintf(p.out, "%-70s%s[OK]%s\n", msg+"...", colorGreen, colorReset)
}

// warn prints a complete warning line
func (p progress) warn(msg string) {
	fmt.Fprintf(p.out, "%-70s%s[WARN]%s\n", msg+"...", colorYellow, colorReset)
}

// skip prints a complete line for a step that was not needed
func (p progress) skip(msg string) {
	fmt.Fprintf(p.out, "%-70s[SKIP]\n", msg+"...")
}
