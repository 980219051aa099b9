package secrets

import (
	"bytes"
	"context"
	"io"
	"os"

	"filippo.io/age"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// AgeFileSource reads credentials from an age-encrypted JSON file, for
// deployments that keep secrets on disk instead of in a secret store.
type AgeFileSource struct {
	path         string
	identityPath string
}

// NewAgeFileSource decrypts path with the identities in identityPath.
func NewAgeFileSource(path, identityPath string) *AgeFileSource {
	return &AgeFileSource{path: path, identityPath: identityPath}
}

func (s *AgeFileSource) GraphCredentials(_ context.Context) (GraphCredentials, error) {
	keys, err := os.ReadFile(s.identityPath)
	if err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryConfig, "read identity file").
			WithContext("path", s.identityPath).
			Build()
	}
	identities, err := age.ParseIdentities(bytes.NewReader(keys))
	if err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryConfig, "parse identity file").
			WithContext("path", s.identityPath).
			Build()
	}

	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryConfig, "read secret file").
			WithContext("path", s.path).
			Build()
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryAuth, "decrypt secret file").
			WithContext("path", s.path).
			Build()
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryAuth, "decrypt secret file").
			WithContext("path", s.path).
			Build()
	}
	return decode(plaintext, "file")
}
