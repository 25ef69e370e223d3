package detect

import (
	"regexp"
	"strings"
)

// Result classifies a snapshot of terminal output.
type Result struct {
	Detected bool   `json:"detected"`
	Type     string `json:"type"`
	Ready    bool   `json:"ready"`
	Prompt   string `json:"prompt"`
}

// LearnedType is reported when a learned pattern matched.
const LearnedType = "learned"

type builtin struct {
	replType string
	prompt   *regexp.Regexp
	cont     *regexp.Regexp // nil when the REPL has no continuation form
}

// Built-in prompt shapes, in fixed enumeration order. Specific shapes come
// before the generic ones so e.g. "irb(main):001:0>" is not swallowed by the
// bare ">" rule.
var builtins = []builtin{
	{
		replType: "pry",
		prompt:   regexp.MustCompile(`\[\d+\] pry\([^)]*\)> ?$`),
		cont:     regexp.MustCompile(`\[\d+\] pry\([^)]*\)\* ?$`),
	},
	{
		replType: "irb",
		prompt:   regexp.MustCompile(`irb\([^)]*\):\d+:\d+> ?$`),
		cont:     regexp.MustCompile(`irb\([^)]*\):\d+:\d+\* ?$`),
	},
	{
		replType: "ipython",
		prompt:   regexp.MustCompile(`^In \[\d+\]: ?$`),
		cont:     regexp.MustCompile(`^\s*\.{3,}: ?$`),
	},
	{
		replType: "python",
		prompt:   regexp.MustCompile(`^>>> ?$`),
		cont:     regexp.MustCompile(`^\.\.\. ?$`),
	},
	{
		replType: "node",
		// Tolerates trailing control sequences left by readline redraws.
		prompt: regexp.MustCompile(`^> ?(?:\x1b\[[0-9;]*[A-Za-z]|\s)*$`),
	},
	{
		replType: "cmd",
		prompt:   regexp.MustCompile(`^[A-Za-z]:\\[^>]*> ?$`),
	},
	{
		replType: "shell",
		prompt:   regexp.MustCompile(`[$%#] ?$`),
	},
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*(?:\x07|\x1b\\)|\x1b[()][0-9A-Za-z]|\x1b[=>]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// Detect classifies snapshot. hint optionally names the expected REPL type,
// learned holds patterns taught at runtime (tried as regex, falling back to
// literal substring), and clean indicates the snapshot is already ANSI-free.
func Detect(snapshot, hint string, learned []string, clean bool) Result {
	normalized := strings.ReplaceAll(snapshot, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")

	lastNonBlank := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !clean {
			line = StripANSI(line)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lastNonBlank == "" {
			lastNonBlank = strings.TrimRight(line, " \t")
		}

		if r, ok := matchLine(line, hint, learned); ok {
			return r
		}
	}

	return Result{
		Detected: false,
		Ready:    false,
		Prompt:   lastNonBlank,
	}
}

// matchLine tests one candidate line in the fixed priority order.
func matchLine(line, hint string, learned []string) (Result, bool) {
	for _, pattern := range learned {
		if matchLearned(line, pattern) {
			return Result{Detected: true, Type: LearnedType, Ready: true, Prompt: line}, true
		}
	}

	var hinted *builtin
	if hint != "" {
		for i := range builtins {
			if builtins[i].replType == hint {
				hinted = &builtins[i]
				break
			}
		}
	}

	if hinted != nil {
		if hinted.prompt.MatchString(line) {
			return Result{Detected: true, Type: hinted.replType, Ready: true, Prompt: line}, true
		}
		if hinted.cont != nil && hinted.cont.MatchString(line) {
			return Result{Detected: true, Type: hinted.replType, Ready: false, Prompt: line}, true
		}
	}

	for i := range builtins {
		b := &builtins[i]
		if hinted == b {
			continue
		}
		if b.prompt.MatchString(line) {
			return Result{Detected: true, Type: b.replType, Ready: true, Prompt: line}, true
		}
	}

	for i := range builtins {
		b := &builtins[i]
		if hinted == b || b.cont == nil {
			continue
		}
		if b.cont.MatchString(line) {
			return Result{Detected: true, Type: b.replType, Ready: false, Prompt: line}, true
		}
	}

	return Result{}, false
}

// matchLearned tries pattern as a regular expression; when it does not
// compile, it degrades to a literal substring match. The leniency is
// deliberate: callers teach patterns as free text.
func matchLearned(line, pattern string) bool {
	if pattern == "" {
		return false
	}
	if re, err := regexp.Compile(pattern); err == nil {
		return re.MatchString(line)
	}
	return strings.Contains(line, pattern)
}

// KnownTypes lists the built-in REPL type tags in enumeration order.
func KnownTypes() []string {
	types := make([]string, len(builtins))
	for i, b := range builtins {
		types[i] = b.replType
	}
	return types
}
