package detect

import "strings"

// Error signatures by REPL type. A command's output is flagged as an error
// result when any signature appears anywhere in it, case-insensitively. This
// is advisory only: it marks success=false on an otherwise normal round-trip.
var errorSignatures = map[string][]string{
	"python": {
		"traceback (most recent call last)",
		"syntaxerror:",
		"nameerror:",
		"typeerror:",
		"valueerror:",
		"indentationerror:",
		"keyerror:",
		"attributeerror:",
		"modulenotfounderror:",
	},
	"ipython": {
		"traceback (most recent call last)",
		"syntaxerror:",
		"nameerror:",
		"typeerror:",
	},
	"node": {
		"uncaught error",
		"referenceerror:",
		"syntaxerror:",
		"typeerror:",
		"rangeerror:",
	},
	"irb": {
		"syntaxerror",
		"nomethoderror",
		"nameerror",
		"argumenterror",
		"(irb):",
	},
	"pry": {
		"syntaxerror",
		"nomethoderror",
		"nameerror",
	},
	"shell": {
		"command not found",
		"no such file or directory",
		"permission denied",
		"segmentation fault",
	},
	"cmd": {
		"is not recognized as an internal or external command",
		"access is denied",
		"the system cannot find",
	},
}

var genericErrorSignatures = []string{
	"error:",
	"exception:",
	"fatal:",
	"panic:",
}

// IsErrorOutput reports whether output looks like an error result for the
// given REPL type.
func IsErrorOutput(output, replType string) bool {
	lowered := strings.ToLower(output)

	for _, sig := range errorSignatures[replType] {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	for _, sig := range genericErrorSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}
