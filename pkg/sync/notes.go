package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeTagPattern matches the encoded time block a task may carry in its
// notes, e.g. "[Time: 14:00 - 15:30]".
var timeTagPattern = regexp.MustCompile(`\[Time:\s*(\d{2}:\d{2})\s*-\s*(\d{2}:\d{2})\]`)

// TimeRange extracts the start/end pair from a notes time block.
// Returns empty strings when no block is present.
func TimeRange(notes string) (start, end string) {
	m := timeTagPattern.FindStringSubmatch(notes)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// SynthesizeEnd returns start plus one hour, wrapping at midnight.
// Malformed input yields "".
func SynthesizeEnd(start string) string {
	parts := strings.SplitN(start, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", (h+1)%24, m)
}

// WithTimeRange rewrites notes so they carry exactly the given time
// block: an existing block is replaced, a missing one appended, and an
// empty pair strips the block.
func WithTimeRange(notes, start, end string) string {
	block := ""
	if start != "" && end != "" {
		block = fmt.Sprintf("[Time: %s - %s]", start, end)
	}

	if timeTagPattern.MatchString(notes) {
		if block != "" {
			return timeTagPattern.ReplaceAllString(notes, block)
		}
		return strings.TrimSpace(timeTagPattern.ReplaceAllString(notes, ""))
	}
	if block == "" {
		return notes
	}
	return strings.TrimSpace(notes + "\n\n" + block)
}
