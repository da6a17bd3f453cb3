package figma

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	designURLRe = regexp.MustCompile(`(?:file|design|proto)/([^/?#]+)`)
	nodeIDRe    = regexp.MustCompile(`node-id=([^&#]+)`)
	fileKeyRe   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ParseURL extracts the file key and optional node id from a Figma link.
// A bare file key is accepted as well. Node ids in links use '-' where the
// API uses ':'.
func ParseURL(raw string) (fileKey, nodeID string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty figma reference")
	}

	if fileKeyRe.MatchString(raw) {
		return raw, "", nil
	}

	m := designURLRe.FindStringSubmatch(raw)
	if m == nil {
		return "", "", fmt.Errorf("invalid figma URL %q: no file key", raw)
	}
	fileKey = m[1]

	if n := nodeIDRe.FindStringSubmatch(raw); n != nil {
		decoded, err := url.QueryUnescape(n[1])
		if err != nil {
			decoded = n[1]
		}
		nodeID = strings.Replace(decoded, "-", ":", 1)
	}

	return fileKey, nodeID, nil
}
