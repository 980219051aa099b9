// Package logresolve finds the build log object for a finished pipeline
// execution among all objects under the log prefix.
package logresolve

import (
	"regexp"
	"sort"
	"strings"
	"time"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Object is a stored object's listing entry.
type Object struct {
	Key          string
	LastModified time.Time
	Size         int64
}

var nonWord = regexp.MustCompile(`\W+`)

// BranchLogName is the path fragment a branch's logs are written under:
// "logs/" followed by the branch with every run of non-word characters
// replaced by "_".
func BranchLogName(branch string) string {
	return "logs/" + nonWord.ReplaceAllString(branch, "_")
}

// Candidates keeps objects whose key contains the variant token and "logs".
func Candidates(objects []Object, variant string) []Object {
	var out []Object
	for _, o := range objects {
		if strings.Contains(o.Key, variant) && strings.Contains(o.Key, "logs") {
			out = append(out, o)
		}
	}
	return out
}

// SelectLatest picks the most recently modified candidate not newer than
// cutoff. Ties go to the earlier candidate. Used for successful builds.
func SelectLatest(candidates []Object, cutoff time.Time) (Object, bool) {
	var (
		best  Object
		found bool
	)
	for _, o := range candidates {
		if o.LastModified.After(cutoff) {
			continue
		}
		if !found || o.LastModified.After(best.LastModified) {
			best, found = o, true
		}
	}
	return best, found
}

// SelectBranchFirst prefers candidates whose key contains branchLogName and
// breaks ties by recency. Used for failed and stopped builds, where the most
// recent log may belong to a different branch.
func SelectBranchFirst(candidates []Object, branchLogName string) (Object, bool) {
	if len(candidates) == 0 {
		return Object{}, false
	}
	sorted := append([]Object(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi := strings.Contains(sorted[i].Key, branchLogName)
		mj := strings.Contains(sorted[j].Key, branchLogName)
		if mi != mj {
			return mi
		}
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	return sorted[0], true
}

// Location is the parsed structure of a log key:
// <root>/<partition>/<variant>/<date>/<build>/logs/<file>.
type Location struct {
	Key     string
	Variant string
	Date    string
	BuildID string
	LogFile string
}

// Dir is the build directory holding the companion artifact.
func (l Location) Dir() string {
	parts := strings.Split(l.Key, "/")
	return strings.Join(parts[:5], "/") + "/"
}

// ParseLocation splits a log key into its segments.
func ParseLocation(key string) (Location, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 7 {
		return Location{}, ferrors.ValidationError("unexpected log key layout").
			WithContext("key", key).
			Build()
	}
	return Location{
		Key:     key,
		Variant: parts[2],
		Date:    parts[3],
		BuildID: parts[4],
		LogFile: parts[6],
	}, nil
}
