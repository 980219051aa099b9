package source

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codecommit/types"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// CodeCommitAPI is the subset of the CodeCommit client used here.
type CodeCommitAPI interface {
	GetCommit(ctx context.Context, in *codecommit.GetCommitInput, optFns ...func(*codecommit.Options)) (*codecommit.GetCommitOutput, error)
}

// CodeCommitProvider reads commits from AWS CodeCommit.
type CodeCommitProvider struct {
	api CodeCommitAPI
}

// NewCodeCommitProvider wraps api.
func NewCodeCommitProvider(api CodeCommitAPI) *CodeCommitProvider {
	return &CodeCommitProvider{api: api}
}

func (p *CodeCommitProvider) Commit(ctx context.Context, repository, commitID string) (Commit, error) {
	out, err := p.api.GetCommit(ctx, &codecommit.GetCommitInput{
		RepositoryName: aws.String(repository),
		CommitId:       aws.String(commitID),
	})
	if err != nil {
		return Commit{}, ferrors.RemoteServiceError(ferrors.CategorySource, "codecommit.GetCommit", err).
			WithContext("repository", repository).
			WithContext("commit_id", commitID)
	}
	if out.Commit == nil {
		return Commit{}, ferrors.NewError(ferrors.CategoryNotFound, "commit not found").
			WithContext("repository", repository).
			WithContext("commit_id", commitID).
			Build()
	}

	c := out.Commit
	author, err := identity(c.Author)
	if err != nil {
		return Commit{}, err
	}
	committer, err := identity(c.Committer)
	if err != nil {
		return Commit{}, err
	}
	return Commit{
		ID:        aws.ToString(c.CommitId),
		TreeID:    aws.ToString(c.TreeId),
		Parents:   c.Parents,
		Message:   aws.ToString(c.Message),
		Author:    author,
		Committer: committer,
	}, nil
}

func identity(u *types.UserInfo) (Identity, error) {
	if u == nil {
		return Identity{}, nil
	}
	id := Identity{Name: aws.ToString(u.Name), Email: aws.ToString(u.Email)}
	if raw := aws.ToString(u.Date); raw != "" {
		date, err := ParseGitDate(raw)
		if err != nil {
			return Identity{}, err
		}
		id.Date = date
	}
	return id, nil
}
