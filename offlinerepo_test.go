package offlinerepo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/offlinerepo"
)

const manifest = `groupings:
  - name: implementation
    platforms:
      - org.example:bom:1.0
    dependencies:
      - org.example:app-core
  - name: runtimeClasspath
    resolvable: true
    usage: runtime
    extends: [implementation]
`

var remoteFiles = map[string]string{
	"/org/example/bom/1.0/bom-1.0.pom": `<project>
  <groupId>org.example</groupId>
  <artifactId>bom</artifactId>
  <version>1.0</version>
  <packaging>pom</packaging>
  <dependencyManagement>
    <dependencies>
      <dependency>
        <groupId>org.example</groupId>
        <artifactId>app-core</artifactId>
        <version>2.1</version>
      </dependency>
    </dependencies>
  </dependencyManagement>
</project>`,
	"/org/example/app-core/2.1/app-core-2.1.pom": `<project>
  <groupId>org.example</groupId>
  <artifactId>app-core</artifactId>
  <version>2.1</version>
  <dependencies>
    <dependency>
      <groupId>org.example</groupId>
      <artifactId>util</artifactId>
      <version>0.9</version>
    </dependency>
  </dependencies>
</project>`,
	"/org/example/app-core/2.1/app-core-2.1.jar": "core",
	"/org/example/util/0.9/util-0.9.pom": `<project>
  <groupId>org.example</groupId>
  <artifactId>util</artifactId>
  <version>0.9</version>
</project>`,
	"/org/example/util/0.9/util-0.9.jar": "util",
}

func TestBootstrapAndVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := remoteFiles[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "offline-repo.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	project, err := offlinerepo.LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}

	cfg := offlinerepo.DefaultConfig()
	cfg.RemoteURL = server.URL
	cfg.CacheDir = t.TempDir()

	report, err := offlinerepo.Bootstrap(context.Background(), cfg, project, dir, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !report.Pristine() {
		t.Fatalf("report not pristine: %v", report.Err())
	}
	if len(report.CopiedBinaries) != 2 {
		t.Errorf("copied %d binaries, want 2", len(report.CopiedBinaries))
	}

	for _, rel := range []string{
		"org/example/app-core/2.1/app-core-2.1.jar",
		"org/example/util/0.9/util-0.9.jar",
		"org/example/bom/1.0/bom-1.0.pom",
	} {
		if _, err := os.Stat(filepath.Join(report.Root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(report.Root, "org", "example", "bom", "1.0", "bom-1.0.jar")); err == nil {
		t.Error("a platform must not contribute a binary")
	}

	res, err := offlinerepo.Verify(report.Root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.BinaryCount != 2 {
		t.Errorf("BinaryCount = %d, want 2", res.BinaryCount)
	}
}

func TestVerifyIncomplete(t *testing.T) {
	_, err := offlinerepo.Verify(t.TempDir())
	if !errors.Is(err, offlinerepo.ErrIncompleteRepository) {
		t.Fatalf("err = %v, want ErrIncompleteRepository", err)
	}
	var ie *offlinerepo.IncompleteRepositoryError
	if !errors.As(err, &ie) {
		t.Fatalf("err is %T", err)
	}
}

func TestBootstrapInvalidConfig(t *testing.T) {
	cfg := offlinerepo.DefaultConfig()
	cfg.RepoMode = "airgapped"
	_, err := offlinerepo.Bootstrap(context.Background(), cfg, nil, t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestArtifactPath(t *testing.T) {
	got, err := offlinerepo.ArtifactPath("org.example", "core", "1.2.3", "sources", "jar")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("org", "example", "core", "1.2.3", "core-1.2.3-sources.jar")
	if got != want {
		t.Errorf("ArtifactPath = %q, want %q", got, want)
	}

	if _, err := offlinerepo.ArtifactPath("org.example", "", "1.0", "", "jar"); !errors.Is(err, offlinerepo.ErrInvalidIdentifier) {
		t.Errorf("err = %v, want ErrInvalidIdentifier", err)
	}
}

func BenchmarkArtifactPath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = offlinerepo.ArtifactPath("org.springframework.boot", "spring-boot-starter-web", "4.0.2", "", "jar")
	}
}
