package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("HUSHD_TEST_TOKEN", "tok-123")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "literal passes through", input: "literal-value", want: "literal-value"},
		{name: "empty string", input: "", want: ""},
		{name: "env var reference", input: "${HUSHD_TEST_TOKEN}", want: "tok-123"},
		{name: "env var with prefix and suffix", input: "pre-${HUSHD_TEST_TOKEN}-post", want: "pre-tok-123-post"},
		{name: "fallback used when unset", input: "${HUSHD_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty fallback allowed", input: "${HUSHD_TEST_UNSET:-}", want: ""},
		{name: "missing without fallback errors", input: "${HUSHD_TEST_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	secretPath := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(secretPath, []byte("file-secret\n"), 0o600))

	got, err := ReadFile(secretPath)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", got, "trailing newline should be trimmed")

	// Missing file
	_, err = ReadFile(filepath.Join(dir, "does-not-exist"))
	assert.Error(t, err)

	// Empty path
	_, err = ReadFile("")
	assert.Error(t, err)

	// Empty file content
	emptyPath := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(emptyPath, []byte("\n"), 0o600))
	_, err = ReadFile(emptyPath)
	assert.Error(t, err)

	// Directory instead of file
	_, err = ReadFile(dir)
	assert.Error(t, err)
}

func TestResolvePrefersFile(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(secretPath, []byte("from-file"), 0o600))

	got, err := Resolve(secretPath, "from-literal")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = Resolve("", "from-literal")
	require.NoError(t, err)
	assert.Equal(t, "from-literal", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMustResolve(t *testing.T) {
	_, err := MustResolve("bearer token", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer token")

	got, err := MustResolve("bearer token", "", "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}
