// Package source looks up commit metadata for the completion report.
package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Identity is an author or committer.
type Identity struct {
	Name  string
	Email string
	Date  time.Time
}

// Commit is the metadata shown in a report.
type Commit struct {
	ID        string
	TreeID    string
	Parents   []string
	Message   string
	Author    Identity
	Committer Identity
}

// Provider resolves commits by repository and id.
type Provider interface {
	Commit(ctx context.Context, repository, commitID string) (Commit, error)
}

// ParseGitDate parses a raw git date of the form "<epoch seconds> <tz>",
// e.g. "1700000000 +0530". The result is in UTC.
func ParseGitDate(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return time.Time{}, ferrors.ValidationError("empty commit date").Build()
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return time.Time{}, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid commit date").
			WithContext("date", raw).
			Build()
	}
	return time.Unix(secs, 0).UTC(), nil
}

// RepositoryFromRevisionURL extracts the repository name from a source
// revision URL: the third path segment from the end, e.g.
// ".../repositories/<name>/commit/<sha>". URLs with fewer than five
// slash-separated parts are rejected.
func RepositoryFromRevisionURL(url string) (string, error) {
	parts := strings.Split(url, "/")
	if len(parts) < 5 {
		return "", ferrors.ValidationError("unexpected revision URL format").
			WithContext("url", url).
			Build()
	}
	return parts[len(parts)-3], nil
}
