package admin

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/folio/internal/agent"
	"github.com/mwantia/folio/internal/auth"
	config "github.com/mwantia/folio/internal/config/server"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAdmin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runAdminWithInput(t, "", args...)
}

func runAdminWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewAdminCommand()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestUserCreateAndStats(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("metadata.sqlite.path", filepath.Join(t.TempDir(), "folio.db"))

	out, err := runAdmin(t, "user", "create", "admin", "--password", "correct horse")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user 'admin'")

	_, err = runAdmin(t, "user", "create", "admin", "--password", "correct horse")
	assert.ErrorContains(t, err, "already exists")

	out, err = runAdmin(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")
	assert.Regexp(t, `USERS\s+1`, out)
	assert.Regexp(t, `DOCUMENTS\s+0`, out)
}

func assertLogin(t *testing.T, username, password string) {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	s, err := agent.OpenStore(ctx, cfg.Metadata)
	require.NoError(t, err)
	defer s.Close()

	authenticator, err := auth.NewAuthenticator(s, make([]byte, 32), 0)
	require.NoError(t, err)
	_, _, err = authenticator.Login(ctx, username, password)
	assert.NoError(t, err)
}

func TestUserCreateReadsPasswordFromStdin(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("metadata.sqlite.path", filepath.Join(t.TempDir(), "folio.db"))

	out, err := runAdminWithInput(t, "from stdin\r\nignored\n", "user", "create", "editor", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user 'editor'")

	assertLogin(t, "editor", "from stdin")
}

func TestUserCreateReadsPasswordFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("metadata.sqlite.path", filepath.Join(t.TempDir(), "folio.db"))
	t.Setenv(passwordEnv, "from env")

	_, err := runAdmin(t, "user", "create", "editor")
	require.NoError(t, err)

	assertLogin(t, "editor", "from env")
}

func TestUserCreateRequiresPassword(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("metadata.sqlite.path", filepath.Join(t.TempDir(), "folio.db"))
	t.Setenv(passwordEnv, "")

	_, err := runAdmin(t, "user", "create", "editor")
	assert.ErrorContains(t, err, "a password is required")

	_, err = runAdminWithInput(t, "", "user", "create", "editor", "--password-stdin")
	assert.ErrorContains(t, err, "a password is required")

	_, err = runAdmin(t, "user", "create", "editor", "--password", "x", "--password-stdin")
	assert.Error(t, err)
}
