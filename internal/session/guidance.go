package session

import (
	"strconv"
	"strings"
)

// GuidanceKind tags the four answer shapes of the recovery protocol.
type GuidanceKind string

const (
	// GuidanceReady acknowledges that what is already on screen is a valid
	// prompt; the attached pattern is learned for the session's lifetime.
	GuidanceReady GuidanceKind = "ready"
	// GuidanceSend writes text verbatim and re-enters the prompt wait.
	GuidanceSend GuidanceKind = "send"
	// GuidanceWait sleeps, then re-enters the prompt wait once.
	GuidanceWait GuidanceKind = "wait"
	// GuidanceFailed terminates the attempt.
	GuidanceFailed GuidanceKind = "failed"
)

// Guidance is the parsed form of an escalation answer. The string encoding
// ("READY:", "SEND:", "WAIT:", "FAILED:") is parsed exactly once at the
// transport edge; internal logic only sees this union.
type Guidance struct {
	Kind    GuidanceKind
	Pattern string  // GuidanceReady
	Text    string  // GuidanceSend
	Seconds float64 // GuidanceWait
	Reason  string  // GuidanceFailed
}

// ParseGuidance parses a caller-supplied answer string. Anything that does
// not carry a known prefix degrades to Failed with the raw string as reason.
func ParseGuidance(answer string) Guidance {
	trimmed := strings.TrimSpace(answer)

	switch {
	case strings.HasPrefix(trimmed, "READY:"):
		return Guidance{
			Kind:    GuidanceReady,
			Pattern: strings.TrimSpace(strings.TrimPrefix(trimmed, "READY:")),
		}
	case strings.HasPrefix(trimmed, "SEND:"):
		// Text is taken verbatim after the prefix; the caller controls
		// whether a terminator is included.
		return Guidance{
			Kind: GuidanceSend,
			Text: strings.TrimPrefix(answer[strings.Index(answer, "SEND:"):], "SEND:"),
		}
	case strings.HasPrefix(trimmed, "WAIT:"):
		raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "WAIT:"))
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds < 0 {
			return Guidance{Kind: GuidanceFailed, Reason: "unparseable wait duration: " + raw}
		}
		return Guidance{Kind: GuidanceWait, Seconds: seconds}
	case strings.HasPrefix(trimmed, "FAILED:"):
		return Guidance{
			Kind:   GuidanceFailed,
			Reason: strings.TrimSpace(strings.TrimPrefix(trimmed, "FAILED:")),
		}
	default:
		return Guidance{Kind: GuidanceFailed, Reason: "unrecognized guidance: " + trimmed}
	}
}
