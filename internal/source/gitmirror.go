package source

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// GitMirrorProvider reads commits from local clones kept under a directory,
// one per repository ("<dir>/<name>" or "<dir>/<name>.git"). A commit that is
// missing locally triggers one fetch from origin.
type GitMirrorProvider struct {
	dir string
}

// NewGitMirrorProvider reads mirrors under dir.
func NewGitMirrorProvider(dir string) *GitMirrorProvider {
	return &GitMirrorProvider{dir: dir}
}

func (p *GitMirrorProvider) open(repository string) (*git.Repository, error) {
	for _, candidate := range []string{repository, repository + ".git"} {
		path := filepath.Join(p.dir, candidate)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategorySource, "open repository mirror").
				WithContext("path", path).
				Build()
		}
		return repo, nil
	}
	return nil, ferrors.NewError(ferrors.CategoryNotFound, "repository mirror not found").
		WithContext("repository", repository).
		WithContext("dir", p.dir).
		Build()
}

func (p *GitMirrorProvider) Commit(ctx context.Context, repository, commitID string) (Commit, error) {
	repo, err := p.open(repository)
	if err != nil {
		return Commit{}, err
	}

	hash := plumbing.NewHash(commitID)
	obj, err := repo.CommitObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		slog.Info("Commit not in mirror, fetching", logfields.Repository(repository), logfields.Commit(commitID))
		fetchErr := repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin"})
		if fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
			return Commit{}, ferrors.WrapError(fetchErr, ferrors.CategorySource, "fetch repository mirror").
				WithContext("repository", repository).
				Build()
		}
		obj, err = repo.CommitObject(hash)
	}
	if err != nil {
		return Commit{}, ferrors.WrapError(err, ferrors.CategoryNotFound, "commit not found").
			WithContext("repository", repository).
			WithContext("commit_id", commitID).
			Build()
	}
	return fromObject(obj), nil
}

func fromObject(c *object.Commit) Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return Commit{
		ID:      c.Hash.String(),
		TreeID:  c.TreeHash.String(),
		Parents: parents,
		Message: c.Message,
		Author: Identity{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			Date:  c.Author.When.UTC(),
		},
		Committer: Identity{
			Name:  c.Committer.Name,
			Email: c.Committer.Email,
			Date:  c.Committer.When.UTC(),
		},
	}
}
