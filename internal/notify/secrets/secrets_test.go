package secrets

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

const secretJSON = `{"TENANT_ID":"t-1","CLIENT_ID":"c-1","CLIENT_SECRET":"s-1"}`

type fakeSM struct {
	value string
	err   error
	calls int
}

func (f *fakeSM) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestSecretsManagerSource(t *testing.T) {
	api := &fakeSM{value: secretJSON}
	creds, err := NewSecretsManagerSource(api, "arn:secret").GraphCredentials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, GraphCredentials{TenantID: "t-1", ClientID: "c-1", ClientSecret: "s-1"}, creds)

	api.value = `{"TENANT_ID":"t-1"}`
	_, err = NewSecretsManagerSource(api, "arn:secret").GraphCredentials(t.Context())
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, []string{"CLIENT_ID", "CLIENT_SECRET"}, ce.Context()["missing"])
}

func TestCachedRetriesFailures(t *testing.T) {
	api := &fakeSM{err: errors.New("throttled")}
	c := NewCached(NewSecretsManagerSource(api, "arn:secret"))

	_, err := c.GraphCredentials(t.Context())
	require.Error(t, err)

	api.err, api.value = nil, secretJSON
	_, err = c.GraphCredentials(t.Context())
	require.NoError(t, err)
	_, err = c.GraphCredentials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestAgeFileSource(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, id.Recipient())
	require.NoError(t, err)
	_, err = w.Write([]byte(secretJSON))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	dir := t.TempDir()
	secretPath := filepath.Join(dir, "graph.json.age")
	identityPath := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(secretPath, buf.Bytes(), 0o600))
	require.NoError(t, os.WriteFile(identityPath, []byte("# test key\n"+id.String()+"\n"), 0o600))

	creds, err := NewAgeFileSource(secretPath, identityPath).GraphCredentials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "c-1", creds.ClientID)

	other, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(identityPath, []byte(other.String()+"\n"), 0o600))
	_, err = NewAgeFileSource(secretPath, identityPath).GraphCredentials(t.Context())
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))
}
