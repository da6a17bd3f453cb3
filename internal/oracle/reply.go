package oracle

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	componentRe = regexp.MustCompile(`ACTION_COMPONENT:\s*"([^"]+)"`)
	locationRe  = regexp.MustCompile(`ACTION_LOCATION:\s*"([^"]+)"`)
	completeRe  = regexp.MustCompile(`TASK_COMPLETE:\s*(YES|NO)`)
	susScoreRe  = regexp.MustCompile(`FINAL_SUS_SCORE:\s*\[?([0-9]+(?:\.[0-9]+)?)`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Reply is the structured part of a Describe response.
type Reply struct {
	Complete     bool
	Component    string
	HasComponent bool
	// Location is a grid label, lower-cased and hyphenated.
	Location string
}

// ParseReply extracts the three labelled fields from a Describe response.
// A missing TASK_COMPLETE marker reads as not complete.
func ParseReply(text string) Reply {
	var r Reply

	if m := componentRe.FindStringSubmatch(text); m != nil {
		r.Component = m[1]
		r.HasComponent = true
	}
	if m := locationRe.FindStringSubmatch(text); m != nil {
		r.Location = NormalizeLocation(m[1])
	}
	if m := completeRe.FindStringSubmatch(text); m != nil {
		r.Complete = m[1] == "YES"
	}
	return r
}

// NormalizeLocation turns "Bottom Right" into "bottom-right".
func NormalizeLocation(s string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

// ParseSUSScore reads the FINAL_SUS_SCORE line of a narrative.
func ParseSUSScore(narrative string) (float64, bool) {
	m := susScoreRe.FindStringSubmatch(narrative)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}
