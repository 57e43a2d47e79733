package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerRoleCUE = `app:  "database"
role: "provider"
relation: {
	name:      "service"
	interface: "svc"
}
capabilities: db: "1.0.0"
ready:  true
config: "db_config"
`

const invalidRoleTOML = `app = ""
role = "observer"

[relation]
name = "service"
interface = "svc"

[capabilities]
db = ""
`

func TestValidateCommand_ValidFiles(t *testing.T) {
	dir := t.TempDir()
	yamlRole := writeFile(t, dir, "consumer.yaml", consumerRoleYAML)
	cueRole := writeFile(t, dir, "provider.cue", providerRoleCUE)

	stdout, _, err := runCLI(t, "", "validate", yamlRole, cueRole)
	require.NoError(t, err)
	assert.Contains(t, stdout, "\u2713 "+yamlRole+" (consumer webapp on service/svc)")
	assert.Contains(t, stdout, "\u2713 "+cueRole+" (provider database on service/svc)")
}

func TestValidateCommand_InvalidFileReportsEveryError(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "consumer.yaml", consumerRoleYAML)
	bad := writeFile(t, dir, "bad.toml", invalidRoleTOML)

	stdout, _, err := runCLI(t, "", "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "\u2713 "+good)
	assert.Contains(t, stdout, "\u2717 "+bad)
	assert.Contains(t, stdout, "app: must not be empty")
	assert.Contains(t, stdout, "role: must be provider or consumer")
	assert.Contains(t, stdout, "capabilities.db")
}

func TestValidateCommand_UnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "role.yaml", consumerRoleYAML+"replicas: 3\n")

	stdout, _, err := runCLI(t, "", "validate", path)
	require.Error(t, err)
	assert.Contains(t, stdout, "replicas")
}

func TestValidateCommand_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "role.ini", "app=x")

	stdout, _, err := runCLI(t, "", "validate", path)
	require.Error(t, err)
	assert.Contains(t, stdout, "unsupported extension")
}

func TestValidateCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "provider.yaml", providerRoleYAML)
	bad := writeFile(t, dir, "bad.toml", invalidRoleTOML)

	stdout, _, err := runCLI(t, "", "validate", "--format", "json", good, bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRole, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 2)
	assert.True(t, resp.Data.Files[0].Valid)
	assert.Equal(t, map[string]string{"db": "1.0.0"}, resp.Data.Files[0].Capabilities)
	assert.False(t, resp.Data.Files[1].Valid)
	assert.NotEmpty(t, resp.Data.Files[1].Errors)
}

func TestValidateCommand_MissingArgs(t *testing.T) {
	_, _, err := runCLI(t, "", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	stdout, _, err := runCLI(t, "", "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, stdout, "role config load failed")
}
