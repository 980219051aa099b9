package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codecommit/types"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

func TestParseGitDate(t *testing.T) {
	got, err := ParseGitDate("1700000000 +0530")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), got)

	_, err = ParseGitDate("")
	assert.Error(t, err)
	_, err = ParseGitDate("yesterday +0000")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestRepositoryFromRevisionURL(t *testing.T) {
	repo, err := RepositoryFromRevisionURL("https://ap-south-1.console.aws.amazon.com/codesuite/codecommit/repositories/manifest-demo/commit/abc123")
	require.NoError(t, err)
	assert.Equal(t, "manifest-demo", repo)

	_, err = RepositoryFromRevisionURL("https://x/y")
	assert.Error(t, err)
}

type fakeCodeCommit struct {
	commit *types.Commit
	err    error
}

func (f *fakeCodeCommit) GetCommit(context.Context, *codecommit.GetCommitInput, ...func(*codecommit.Options)) (*codecommit.GetCommitOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &codecommit.GetCommitOutput{Commit: f.commit}, nil
}

func TestCodeCommitProvider(t *testing.T) {
	api := &fakeCodeCommit{commit: &types.Commit{
		CommitId: aws.String("abc123"),
		TreeId:   aws.String("tree1"),
		Parents:  []string{"p1"},
		Author:   &types.UserInfo{Name: aws.String("Asha"), Email: aws.String("asha@example.com"), Date: aws.String("1700000000 +0530")},
		Committer: &types.UserInfo{
			Name:  aws.String("Ravi"),
			Email: aws.String("ravi@example.com"),
			Date:  aws.String("1700003600 +0530"),
		},
	}}
	p := NewCodeCommitProvider(api)

	c, err := p.Commit(t.Context(), "manifest-demo", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", c.ID)
	assert.Equal(t, "ravi@example.com", c.Committer.Email)
	assert.Equal(t, time.Unix(1700003600, 0).UTC(), c.Committer.Date)
	assert.Equal(t, "Asha", c.Author.Name)

	api.err = errors.New("denied")
	_, err = p.Commit(t.Context(), "manifest-demo", "abc123")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySource))
}

func TestGitMirrorProvider(t *testing.T) {
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "manifest-demo")
	repo, err := git.PlainInit(repoPath, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "build.txt"), []byte("v1"), 0o600))
	_, err = wt.Add("build.txt")
	require.NoError(t, err)

	when := time.Date(2026, 1, 5, 9, 30, 0, 0, time.FixedZone("IST", 19800))
	hash, err := wt.Commit("release build", &git.CommitOptions{
		Author:    &object.Signature{Name: "Asha", Email: "asha@example.com", When: when},
		Committer: &object.Signature{Name: "Ravi", Email: "ravi@example.com", When: when.Add(time.Hour)},
	})
	require.NoError(t, err)

	p := NewGitMirrorProvider(dir)
	c, err := p.Commit(t.Context(), "manifest-demo", hash.String())
	require.NoError(t, err)
	assert.Equal(t, hash.String(), c.ID)
	assert.Equal(t, "ravi@example.com", c.Committer.Email)
	assert.Equal(t, when.Add(time.Hour).UTC(), c.Committer.Date)
	assert.Equal(t, "release build", c.Message)
	assert.Empty(t, c.Parents)

	_, err = p.Commit(t.Context(), "manifest-demo", "0000000000000000000000000000000000000001")
	assert.Error(t, err)

	_, err = p.Commit(t.Context(), "unknown", hash.String())
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}
