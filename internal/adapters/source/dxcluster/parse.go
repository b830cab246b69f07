package dxcluster

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
)

// Spot line grammar:
//
//	DX de <spotter>: <freq> <callsign> <rest-of-line> [HHMMZ]
//
// The mode may sit anywhere in <rest-of-line>; what remains after removing
// it is kept as a free-text comment.
var spotLinePattern = regexp.MustCompile(
	`(?i)^DX de\s+([A-Z0-9/]+[A-Z0-9]):\s+(\d+\.?\d*)\s+([A-Z0-9/]+[A-Z0-9])\s+(.+?)(?:\s+(\d{4}Z))?\s*$`,
)

// modePattern matches any known mode as a whole word. Longer tokens come
// first so WSPR-15 is not split into WSPR.
var modePattern = func() *regexp.Regexp {
	modes := model.AllModes()
	sort.Slice(modes, func(i, j int) bool { return len(modes[i]) > len(modes[j]) })
	quoted := make([]string, len(modes))
	for i, m := range modes {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}()

// Frequencies at or above this are VHF/UHF, where FM is the customary
// default; below it SSB is assumed when the line names no mode.
const vhfBoundaryHz = 50_000_000

// parseSpotLine parses one cluster spot line. Returns false for lines
// that do not complete the grammar or fail validation; callers drop those
// without aborting the stream.
func parseSpotLine(line string, ingestedAt time.Time) (model.Spot, bool) {
	m := spotLinePattern.FindStringSubmatch(line)
	if m == nil {
		return model.Spot{}, false
	}

	spotter := model.NormalizeCallsign(m[1])
	callsign := model.NormalizeCallsign(m[3])
	rest := strings.TrimSpace(m[4])

	freqValue, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return model.Spot{}, false
	}
	frequency := model.NormalizeFrequency(freqValue)

	mode, comment := extractMode(rest)
	if mode == "" {
		if frequency >= vhfBoundaryHz {
			mode = "FM"
		} else {
			mode = "SSB"
		}
		comment = rest
	}

	if len(callsign) < 2 {
		return model.Spot{}, false
	}

	spot := model.Spot{
		Callsign:  callsign,
		Mode:      mode,
		Frequency: frequency,
		Timestamp: ingestedAt.UTC(),
		SpotID:    model.FallbackSpotID(callsign, mode, frequency, ingestedAt),
		Source:    SourceName,
		Spotter:   spotter,
	}
	if comment != "" {
		spot.Extra = map[string]string{"comment": comment}
	}
	return spot, true
}

// extractMode scans text for a known mode as a whole word and returns the
// mode plus the text with that token removed. Empty mode means none found.
func extractMode(text string) (string, string) {
	loc := modePattern.FindStringIndex(text)
	if loc == nil {
		return "", text
	}
	mode := model.NormalizeMode(text[loc[0]:loc[1]])
	comment := strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	comment = strings.Join(strings.Fields(comment), " ")
	return mode, comment
}

// System chatter that must never be parsed as a spot.
var skipKeywords = []string{
	"login:", "please enter", "this is", "running", "capabilities:",
	"nodes:", "users", "uptime:", "de ", "set/", "enter your",
}

// skipLine reports whether a received line is blank, a prompt terminator
// or known system/banner chatter.
func skipLine(line string) bool {
	if line == "" {
		return true
	}
	if strings.HasSuffix(line, ">") || strings.HasSuffix(line, "$") {
		return true
	}
	if strings.HasPrefix(line, "DX de") {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range skipKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
