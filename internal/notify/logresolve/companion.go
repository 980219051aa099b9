package logresolve

import (
	"bufio"
	"bytes"
	"strings"
)

// Companion artifact markers.
const (
	MarkerVersion      = "SOC_VERSION"
	MarkerArtifactPath = "SOC_JFROGPATH"
)

// Companion holds the fields read from the build's text artifact.
type Companion struct {
	Version      string
	ArtifactPath string
}

// ParseCompanion scans content for the first line containing each marker
// and takes the text after the line's first colon, trimmed.
func ParseCompanion(content []byte) Companion {
	var c Companion
	var haveVersion, havePath bool
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if !haveVersion && strings.Contains(line, MarkerVersion) {
			c.Version, haveVersion = afterColon(line)
		}
		if !havePath && strings.Contains(line, MarkerArtifactPath) {
			c.ArtifactPath, havePath = afterColon(line)
		}
	}
	return c
}

func afterColon(line string) (string, bool) {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (c Companion) merge(other Companion) Companion {
	if other.Version != "" {
		c.Version = other.Version
	}
	if other.ArtifactPath != "" {
		c.ArtifactPath = other.ArtifactPath
	}
	return c
}
