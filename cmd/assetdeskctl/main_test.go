package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"license", "migrate", "jobs"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestLicenseGenerateThenInspect(t *testing.T) {
	key, err := run(t, "license", "generate", "--secret", "cli-secret", "--company", "Acme Corp", "--days", "30")
	require.NoError(t, err)
	key = strings.TrimSpace(key)
	require.NotEmpty(t, key)

	out, err := run(t, "license", "inspect", "--secret", "cli-secret", key)
	require.NoError(t, err)

	var payload struct {
		Company string `json:"company"`
		Nonce   string `json:"nonce"`
		Expired bool   `json:"expired"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "Acme Corp", payload.Company)
	assert.NotEmpty(t, payload.Nonce)
	assert.False(t, payload.Expired)
}

func TestLicenseInspectWrongSecret(t *testing.T) {
	key, err := run(t, "license", "generate", "--secret", "one", "--company", "Acme")
	require.NoError(t, err)

	_, err = run(t, "license", "inspect", "--secret", "two", strings.TrimSpace(key))
	assert.Error(t, err)
}

func TestLicenseRequiresSecret(t *testing.T) {
	t.Setenv("LICENSE_SECRET", "")
	_, err := run(t, "license", "generate", "--company", "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "license secret required")
}

func TestLicenseGenerateValidatesDays(t *testing.T) {
	_, err := run(t, "license", "generate", "--secret", "s", "--company", "Acme", "--days", "0")
	assert.Error(t, err)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("PG_DSN", "")
	_, err := run(t, "migrate", "up", "--dsn", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn required")
}
