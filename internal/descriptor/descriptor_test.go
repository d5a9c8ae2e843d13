package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePOM(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Coordinates(t *testing.T) {
	path := writePOM(t, `<?xml version="1.0"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>org.example</groupId>
  <artifactId>project</artifactId>
  <version> 1.0 </version>
</project>`)

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Coordinates{GroupID: "org.example", ArtifactID: "project", Version: "1.0"}, d.Coordinates)
	assert.Equal(t, "jar", d.Packaging)
	assert.Equal(t, path, d.Path)
	assert.Equal(t, "org.example:project:1.0", d.Coordinates.String())
}

func TestLoad_InheritsFromParent(t *testing.T) {
	path := writePOM(t, `<project>
  <parent><groupId>org.parent</groupId><artifactId>base</artifactId><version>2.1</version></parent>
  <artifactId>child</artifactId>
  <packaging>pom</packaging>
</project>`)

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "org.parent", d.Coordinates.GroupID)
	assert.Equal(t, "child", d.Coordinates.ArtifactID)
	assert.Equal(t, "2.1", d.Coordinates.Version)
	assert.Empty(t, d.MainExtension())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.xml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("not xml", func(t *testing.T) {
		_, err := Load(writePOM(t, "not a pom"))
		require.Error(t, err)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		_, err := Load(writePOM(t, `<project><artifactId>a</artifactId></project>`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "groupId, version")
	})

	tests := map[string]string{
		"artifactId with separators": `<project><groupId>g</groupId><artifactId>../../escaped</artifactId><version>1</version></project>`,
		"backslash in version":       `<project><groupId>g</groupId><artifactId>a</artifactId><version>..\\x</version></project>`,
		"dot-dot groupId":            `<project><groupId>..</groupId><artifactId>a</artifactId><version>1</version></project>`,
		"dot version":                `<project><groupId>g</groupId><artifactId>a</artifactId><version>.</version></project>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writePOM(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not a valid path segment")
		})
	}
}

func TestMainExtension(t *testing.T) {
	tests := map[string]string{"jar": "jar", "war": "war", "maven-plugin": "jar", "pom": ""}
	for packaging, want := range tests {
		d := &Descriptor{Packaging: packaging}
		assert.Equal(t, want, d.MainExtension(), packaging)
	}
}
