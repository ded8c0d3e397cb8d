package maven

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/git-pkgs/offlinerepo/fetch"
	"github.com/git-pkgs/offlinerepo/internal/core"
)

// testRepo serves an in-memory Maven repository.
type testRepo struct {
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

func newTestRepo() *testRepo {
	return &testRepo{files: make(map[string]string), hits: make(map[string]int)}
}

func (tr *testRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	body, ok := tr.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	tr.hits[r.URL.Path]++
	_, _ = w.Write([]byte(body))
}

func (tr *testRepo) put(path, body string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.files[path] = body
}

// pom publishes a POM plus a jar for coord "g:a:v". extra is inserted
// verbatim into the project element.
func (tr *testRepo) pom(coord, extra string) {
	c, err := core.ParseCoordinate(coord)
	if err != nil {
		panic(err)
	}
	dir := "/" + strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version + "/"
	base := c.Artifact + "-" + c.Version
	tr.put(dir+base+".pom", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
  %s
</project>`, c.Group, c.Artifact, c.Version, extra))
	tr.put(dir+base+".jar", "PK "+coord)
}

func dep(coord string, extra ...string) string {
	c, err := core.ParseCoordinate(coord)
	if err != nil {
		panic(err)
	}
	version := ""
	if c.Version != "" {
		version = "<version>" + c.Version + "</version>"
	}
	return fmt.Sprintf("<dependency><groupId>%s</groupId><artifactId>%s</artifactId>%s%s</dependency>",
		c.Group, c.Artifact, version, strings.Join(extra, ""))
}

func deps(items ...string) string {
	return "<dependencies>" + strings.Join(items, "") + "</dependencies>"
}

func newTestResolver(t *testing.T, repo *testRepo) *Resolver {
	t.Helper()
	server := httptest.NewServer(repo)
	t.Cleanup(server.Close)

	src := &fetch.Source{
		Mode:    core.ModeBootstrap,
		BaseURL: server.URL,
		Fetcher: fetch.NewFetcher(fetch.WithMaxRetries(0)),
	}
	r, err := New(src, t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func grouping(name string, usage core.Usage, coords ...string) core.Grouping {
	g := core.Grouping{Name: name, Resolvable: true, Usage: usage}
	for _, c := range coords {
		parsed, err := core.ParseCoordinate(c)
		if err != nil {
			panic(err)
		}
		g.Dependencies = append(g.Dependencies, core.Dependency{Coordinate: parsed})
	}
	return g
}

func selectedOf(t *testing.T, r *Resolver, g core.Grouping) map[string]string {
	t.Helper()
	graph, err := r.Resolve(context.Background(), g)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return graph.Selected()
}

func TestResolveTransitiveScopes(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:app:1.0", deps(
		dep("org.example:api:1.0"),
		dep("org.example:driver:1.0", "<scope>runtime</scope>"),
		dep("org.example:junit:4.0", "<scope>test</scope>"),
		dep("org.example:servlet:3.0", "<scope>provided</scope>"),
		dep("org.example:extra:1.0", "<optional>true</optional>"),
	))
	repo.pom("org.example:api:1.0", "")
	repo.pom("org.example:driver:1.0", "")

	r := newTestResolver(t, repo)

	compile := selectedOf(t, r, grouping("compileClasspath", core.UsageCompile, "org.example:app:1.0"))
	if len(compile) != 2 || compile["org.example:api"] != "1.0" {
		t.Errorf("compile graph = %v, want app and api", compile)
	}

	runtime := selectedOf(t, r, grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"))
	if len(runtime) != 3 || runtime["org.example:driver"] != "1.0" {
		t.Errorf("runtime graph = %v, want app, api and driver", runtime)
	}
}

func TestResolveHighestVersionWins(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:a:1.0", deps(dep("org.example:shared:1.0")))
	repo.pom("org.example:b:1.0", deps(dep("org.example:shared:1.2")))
	repo.pom("org.example:shared:1.0", deps(dep("org.example:old-only:1.0")))
	repo.pom("org.example:shared:1.2", deps(dep("org.example:new-only:1.0")))
	repo.pom("org.example:old-only:1.0", "")
	repo.pom("org.example:new-only:1.0", "")

	r := newTestResolver(t, repo)
	got := selectedOf(t, r, grouping("runtimeClasspath", core.UsageRuntime, "org.example:a:1.0", "org.example:b:1.0"))

	if got["org.example:shared"] != "1.2" {
		t.Errorf("shared = %q, want 1.2", got["org.example:shared"])
	}
	if _, ok := got["org.example:new-only"]; !ok {
		t.Errorf("expected dependencies of the selected shared version, got %v", got)
	}
	if _, ok := got["org.example:old-only"]; ok {
		t.Errorf("dependencies of the evicted shared version must not appear, got %v", got)
	}
}

func TestResolveExclusions(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:app:1.0", deps(
		dep("org.example:web:1.0", "<exclusions><exclusion><groupId>org.logging</groupId><artifactId>*</artifactId></exclusion></exclusions>"),
	))
	repo.pom("org.example:web:1.0", deps(dep("org.example:http:1.0"), dep("org.logging:jcl:1.0")))
	repo.pom("org.example:http:1.0", deps(dep("org.logging:log4j:1.0")))

	r := newTestResolver(t, repo)
	got := selectedOf(t, r, grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"))

	for module := range got {
		if strings.HasPrefix(module, "org.logging:") {
			t.Errorf("excluded module %s was resolved", module)
		}
	}
	if got["org.example:http"] != "1.0" {
		t.Errorf("expected org.example:http in %v", got)
	}
}

func TestResolveParentAndBOMImport(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:bom:2.0", `<packaging>pom</packaging>
  <dependencyManagement>`+deps(dep("org.example:lib:2.5"))+`</dependencyManagement>`)
	repo.pom("org.example:parent:1.0", `<packaging>pom</packaging>
  <properties><bom.version>2.0</bom.version></properties>
  <dependencyManagement>`+deps(dep("org.example:bom:${bom.version}", "<type>pom</type><scope>import</scope>"))+`</dependencyManagement>`)
	repo.put("/org/example/child/1.0/child-1.0.pom", `<project>
  <parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>1.0</version></parent>
  <artifactId>child</artifactId>
  `+deps(dep("org.example:lib"))+`
</project>`)
	repo.put("/org/example/child/1.0/child-1.0.jar", "PK child")
	repo.pom("org.example:lib:2.5", "")

	r := newTestResolver(t, repo)
	g := grouping("runtimeClasspath", core.UsageRuntime, "org.example:child:1.0")

	got := selectedOf(t, r, g)
	if got["org.example:lib"] != "2.5" {
		t.Fatalf("lib = %q, want version managed by imported bom", got["org.example:lib"])
	}

	metadata, err := r.Artifacts(context.Background(), g, core.ViewMetadata)
	if err != nil {
		t.Fatalf("Artifacts(metadata) failed: %v", err)
	}
	var poms []string
	for _, d := range metadata {
		if d.Extension != "pom" || d.View != core.ViewMetadata {
			t.Errorf("unexpected metadata descriptor %+v", d)
		}
		poms = append(poms, d.Coordinate.String())
	}
	sort.Strings(poms)
	want := []string{"org.example:bom:2.0", "org.example:child:1.0", "org.example:lib:2.5", "org.example:parent:1.0"}
	if strings.Join(poms, ",") != strings.Join(want, ",") {
		t.Errorf("metadata = %v, want %v", poms, want)
	}

	binaries, err := r.Artifacts(context.Background(), g, core.ViewBinary)
	if err != nil {
		t.Fatalf("Artifacts(binary) failed: %v", err)
	}
	if len(binaries) != 2 {
		t.Fatalf("expected child and lib jars, got %+v", binaries)
	}
	for _, d := range binaries {
		if d.Extension != "jar" || d.Component != core.ComponentModule {
			t.Errorf("unexpected binary descriptor %+v", d)
		}
		if _, err := os.Stat(d.File); err != nil {
			t.Errorf("descriptor file %s missing: %v", d.File, err)
		}
	}
}

func TestResolvePlatformManagesVersions(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.springframework.boot:spring-boot-dependencies:4.0.2", `<packaging>pom</packaging>
  <dependencyManagement>`+deps(
		dep("org.springframework.boot:spring-boot-starter-web:4.0.2"),
		dep("org.example:json:2.0"),
	)+`</dependencyManagement>`)
	repo.pom("org.springframework.boot:spring-boot-starter-web:4.0.2", deps(dep("org.example:json:1.0")))
	repo.pom("org.example:json:2.0", "")

	r := newTestResolver(t, repo)
	g := grouping("compileClasspath", core.UsageCompile)
	g.Platforms = []core.Coordinate{{Group: "org.springframework.boot", Artifact: "spring-boot-dependencies", Version: "4.0.2"}}
	g.Dependencies = []core.Dependency{{Coordinate: core.Coordinate{Group: "org.springframework.boot", Artifact: "spring-boot-starter-web"}}}

	got := selectedOf(t, r, g)
	if got["org.springframework.boot:spring-boot-starter-web"] != "4.0.2" {
		t.Errorf("starter = %q, want platform version", got["org.springframework.boot:spring-boot-starter-web"])
	}
	if got["org.example:json"] != "2.0" {
		t.Errorf("json = %q, want platform version 2.0", got["org.example:json"])
	}

	metadata, err := r.Artifacts(context.Background(), g, core.ViewMetadata)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, d := range metadata {
		if d.Artifact == "spring-boot-dependencies" {
			found = true
		}
	}
	if !found {
		t.Error("expected platform pom in metadata view")
	}
}

func TestResolvePomPackagingHasNoBinary(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:aggregate:1.0", "<packaging>pom</packaging>"+deps(dep("org.example:member:1.0")))
	repo.pom("org.example:member:1.0", "")

	r := newTestResolver(t, repo)
	binaries, err := r.Artifacts(context.Background(), grouping("runtimeClasspath", core.UsageRuntime, "org.example:aggregate:1.0"), core.ViewBinary)
	if err != nil {
		t.Fatal(err)
	}
	if len(binaries) != 1 || binaries[0].Artifact != "member" {
		t.Errorf("binaries = %+v, want only member jar", binaries)
	}
}

func TestResolveVersionRange(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:app:1.0", deps(dep("org.example:lib:[1.0,2.0)")))
	repo.put("/org/example/lib/maven-metadata.xml", `<metadata>
  <groupId>org.example</groupId><artifactId>lib</artifactId>
  <versioning><versions><version>1.0</version><version>1.4</version><version>2.0</version></versions></versioning>
</metadata>`)
	repo.pom("org.example:lib:1.4", "")

	r := newTestResolver(t, repo)
	got := selectedOf(t, r, grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"))
	if got["org.example:lib"] != "1.4" {
		t.Errorf("lib = %q, want 1.4", got["org.example:lib"])
	}
}

func TestResolveRelocation(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.old:lib:1.0", "<distributionManagement><relocation><groupId>org.new</groupId></relocation></distributionManagement>")
	repo.pom("org.new:lib:1.0", "")

	r := newTestResolver(t, repo)
	g := grouping("runtimeClasspath", core.UsageRuntime, "org.old:lib:1.0")
	binaries, err := r.Artifacts(context.Background(), g, core.ViewBinary)
	if err != nil {
		t.Fatal(err)
	}
	if len(binaries) != 1 || binaries[0].Group != "org.new" {
		t.Errorf("binaries = %+v, want relocated jar", binaries)
	}

	metadata, err := r.Artifacts(context.Background(), g, core.ViewMetadata)
	if err != nil {
		t.Fatal(err)
	}
	if len(metadata) != 2 {
		t.Errorf("metadata = %+v, want both poms", metadata)
	}
}

func TestResolveMissingModule(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:app:1.0", deps(dep("org.example:ghost:1.0")))

	r := newTestResolver(t, repo)
	_, err := r.Resolve(context.Background(), grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"))
	if !errors.Is(err, core.ErrResolution) {
		t.Fatalf("Resolve() error = %v, want ErrResolution", err)
	}
	if !errors.Is(err, fetch.ErrNotFound) {
		t.Errorf("Resolve() error = %v, want it to wrap ErrNotFound", err)
	}
	var re *core.ResolutionError
	if !errors.As(err, &re) || re.Grouping != "runtimeClasspath" {
		t.Errorf("expected ResolutionError naming the grouping, got %v", err)
	}
}

func TestResolveProjectReferences(t *testing.T) {
	repo := newTestRepo()
	r := newTestResolver(t, repo)

	g := core.Grouping{
		Name:       "runtimeClasspath",
		Resolvable: true,
		Projects:   []core.ProjectRef{{Path: ":lib", File: "/work/lib/build/libs/lib.jar"}},
	}
	binaries, err := r.Artifacts(context.Background(), g, core.ViewBinary)
	if err != nil {
		t.Fatal(err)
	}
	if len(binaries) != 1 || binaries[0].Component != core.ComponentProject {
		t.Errorf("binaries = %+v, want one project descriptor", binaries)
	}
}

func TestResolverCachesDownloads(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:app:1.0", "")

	server := httptest.NewServer(repo)
	defer server.Close()
	cache := t.TempDir()
	src := &fetch.Source{Mode: core.ModeBootstrap, BaseURL: server.URL, Fetcher: fetch.NewFetcher()}

	for range 2 {
		r, err := New(src, cache)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.Artifacts(context.Background(), grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"), core.ViewBinary); err != nil {
			t.Fatal(err)
		}
	}

	if hits := repo.hits["/org/example/app/1.0/app-1.0.jar"]; hits != 1 {
		t.Errorf("jar fetched %d times, want 1", hits)
	}
	if _, err := os.Stat(filepath.Join(cache, "org", "example", "app", "1.0", "app-1.0.jar")); err != nil {
		t.Errorf("expected cached jar: %v", err)
	}
}

func TestResolveFromLocalMirror(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("org/example/app/1.0/app-1.0.pom", "<project><groupId>org.example</groupId><artifactId>app</artifactId><version>1.0</version>"+
		deps(dep("org.example:lib:[1.0,)"))+"</project>")
	write("org/example/app/1.0/app-1.0.jar", "PK app")
	write("org/example/lib/1.1/lib-1.1.pom", "<project><groupId>org.example</groupId><artifactId>lib</artifactId><version>1.1</version></project>")
	write("org/example/lib/1.1/lib-1.1.jar", "PK lib")

	src, err := fetch.NewSource(core.ModeConsume, fetch.SourceConfig{MirrorDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(src, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	binaries, err := r.Artifacts(context.Background(), grouping("runtimeClasspath", core.UsageRuntime, "org.example:app:1.0"), core.ViewBinary)
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(binaries) != 2 {
		t.Fatalf("binaries = %+v, want app and lib", binaries)
	}
	for _, d := range binaries {
		if !strings.HasPrefix(d.File, dir) {
			t.Errorf("consume mode must read from the mirror, got %s", d.File)
		}
	}
}

func TestResolveInheritedLicense(t *testing.T) {
	repo := newTestRepo()
	repo.pom("org.example:parent:1.0", `<packaging>pom</packaging>
  <licenses><license><name>Apache-2.0</name></license></licenses>`)
	repo.put("/org/example/child/1.0/child-1.0.pom", `<project>
  <parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>1.0</version></parent>
  <artifactId>child</artifactId>
  `+deps(dep("org.example:unlicensed:1.0"))+`
</project>`)
	repo.put("/org/example/child/1.0/child-1.0.jar", "PK child")
	repo.pom("org.example:unlicensed:1.0", "")

	r := newTestResolver(t, repo)
	binaries, err := r.Artifacts(context.Background(), grouping("runtimeClasspath", core.UsageRuntime, "org.example:child:1.0"), core.ViewBinary)
	if err != nil {
		t.Fatal(err)
	}
	licenses := make(map[string]string)
	for _, d := range binaries {
		licenses[d.Artifact] = d.License
	}
	if licenses["child"] != "Apache-2.0" {
		t.Errorf("child license = %q, want Apache-2.0 from parent", licenses["child"])
	}
	if l, ok := licenses["unlicensed"]; !ok || l != "" {
		t.Errorf("unlicensed license = %q (present %v), want empty", l, ok)
	}
}
