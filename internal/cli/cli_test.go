package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

const testManifest = `name: demo
groupings:
  - name: implementation
    dependencies:
      - org.example:lib:1.0
  - name: runtimeClasspath
    resolvable: true
    usage: runtime
    extends: [implementation]
`

func newTestApp() (*App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &App{Context: context.Background(), Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

func remoteRepo(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/org/example/lib/1.0/lib-1.0.pom": `<project>
  <groupId>org.example</groupId>
  <artifactId>lib</artifactId>
  <version>1.0</version>
  <licenses><license><name>MIT</name></license></licenses>
</project>`,
		"/org/example/lib/1.0/lib-1.0.jar": "lib jar",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "offline-repo.yaml"), []byte(testManifest), 0o644))
	return dir
}

func TestBootstrapThenVerifyThenConsume(t *testing.T) {
	srv := remoteRepo(t)
	dir := project(t)
	cache := t.TempDir()

	app, stdout, _ := newTestApp()
	err := app.Root().Execute([]string{"bootstrap", "-C", dir, "--remote-url", srv.URL, "--cache-dir", cache})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "1 binaries and 1 metadata files copied")

	jar, err := os.ReadFile(filepath.Join(dir, "offline-repo", "org", "example", "lib", "1.0", "lib-1.0.jar"))
	require.NoError(t, err)
	assert.Equal(t, "lib jar", string(jar))
	assert.FileExists(t, filepath.Join(dir, "offline-repo", "org", "example", "lib", "1.0", "lib-1.0.pom"))

	app, stdout, _ = newTestApp()
	require.NoError(t, app.Root().Execute([]string{"verify", "-C", dir}))
	assert.Contains(t, stdout.String(), "offline repository OK: 1 jar artifacts, 1 POMs")

	// The remote is gone; consume mode must read only the offline repository.
	srv.Close()
	app, stdout, _ = newTestApp()
	require.NoError(t, app.Root().Execute([]string{"resolve", "-C", dir, "--mode", "consume", "--cache-dir", cache}))
	assert.Equal(t, "pkg:maven/org.example/lib@1.0\n", stdout.String())
}

func TestBootstrapJSON(t *testing.T) {
	srv := remoteRepo(t)
	dir := project(t)

	app, stdout, _ := newTestApp()
	err := app.Root().Execute([]string{"bootstrap", "-C", dir, "--remote-url", srv.URL, "--cache-dir", t.TempDir(), "--json"})
	require.NoError(t, err)

	var report struct {
		Root     string `json:"root"`
		Pristine bool   `json:"pristine"`
		Binaries []struct {
			Path   string `json:"path"`
			Digest string `json:"blake3"`
		} `json:"binaries"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.True(t, report.Pristine)
	require.Len(t, report.Binaries, 1)
	assert.Equal(t, "org/example/lib/1.0/lib-1.0.jar", report.Binaries[0].Path)
	assert.Len(t, report.Binaries[0].Digest, 64)
}

func TestBootstrapResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	dir := project(t)

	app, _, _ := newTestApp()
	err := app.Root().Execute([]string{"bootstrap", "-C", dir, "--remote-url", srv.URL, "--cache-dir", t.TempDir()})
	require.ErrorIs(t, err, core.ErrResolution)

	app, stdout, _ := newTestApp()
	err = app.Root().Execute([]string{"bootstrap", "-C", dir, "--remote-url", srv.URL, "--cache-dir", t.TempDir(), "--continue-on-error"})
	require.Error(t, err, "a skipped grouping still makes the run fail")
	assert.Contains(t, stdout.String(), "unresolved")
}

func TestVerifyEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	app, _, _ := newTestApp()
	err := app.Root().Execute([]string{"verify", "-C", dir})
	assert.ErrorIs(t, err, core.ErrIncompleteRepository)
}

func TestPathCommand(t *testing.T) {
	app, stdout, _ := newTestApp()
	err := app.Root().Execute([]string{"path",
		"org.slf4j:slf4j-api:2.0.16",
		"com.google.guava:guava:33.4.0-jre:sources",
		"org.springframework.boot:spring-boot-dependencies:4.0.2@pom",
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"org/slf4j/slf4j-api/2.0.16/slf4j-api-2.0.16.jar",
		"com/google/guava/guava/33.4.0-jre/guava-33.4.0-jre-sources.jar",
		"org/springframework/boot/spring-boot-dependencies/4.0.2/spring-boot-dependencies-4.0.2.pom",
	}, "\n")+"\n", filepath.ToSlash(stdout.String()))

	app, _, _ = newTestApp()
	err = app.Root().Execute([]string{"path", "org.slf4j:slf4j-api"})
	assert.ErrorIs(t, err, core.ErrInvalidIdentifier)
}

func TestParseArtifact(t *testing.T) {
	c, classifier, ext, err := parseArtifact("g:a:1:tests@zip")
	require.NoError(t, err)
	assert.Equal(t, core.Coordinate{Group: "g", Artifact: "a", Version: "1"}, c)
	assert.Equal(t, "tests", classifier)
	assert.Equal(t, "zip", ext)

	c, classifier, ext, err = parseArtifact("pkg:maven/com.google.guava/guava@33.4.0-jre?classifier=sources")
	require.NoError(t, err)
	assert.Equal(t, core.Coordinate{Group: "com.google.guava", Artifact: "guava", Version: "33.4.0-jre"}, c)
	assert.Equal(t, "sources", classifier)
	assert.Equal(t, "jar", ext)

	for _, bad := range []string{"g:a", "g:a:1@", "g:a:1:c:d", ":a:1", "pkg:maven/g/a", "pkg:npm/lodash@4.17.21", "pkg:"} {
		_, _, _, err := parseArtifact(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersionFlag(t *testing.T) {
	app, stdout, _ := newTestApp()
	require.NoError(t, app.Root().Execute([]string{"--version"}))
	assert.Equal(t, "offline-repo dev\n", stdout.String())
}

func TestResolveJSONLicense(t *testing.T) {
	srv := remoteRepo(t)
	dir := project(t)

	app, stdout, _ := newTestApp()
	err := app.Root().Execute([]string{"resolve", "-C", dir, "--remote-url", srv.URL, "--cache-dir", t.TempDir(), "--json"})
	require.NoError(t, err)

	var rows []struct {
		Grouping string `json:"grouping"`
		PURL     string `json:"purl"`
		License  string `json:"license"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "runtimeClasspath", rows[0].Grouping)
	assert.Equal(t, "pkg:maven/org.example/lib@1.0", rows[0].PURL)
	assert.Equal(t, "MIT", rows[0].License)
}

func TestResolveUnknownGrouping(t *testing.T) {
	dir := project(t)
	app, _, _ := newTestApp()
	err := app.Root().Execute([]string{"resolve", "-C", dir, "-g", "implementation", "--cache-dir", t.TempDir()})
	assert.ErrorContains(t, err, "not resolvable")
}
