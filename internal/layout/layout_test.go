package layout

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/git-pkgs/offlinerepo/internal/core"
)

func TestPath(t *testing.T) {
	tests := []struct {
		name                     string
		group, artifact, version string
		classifier, ext          string
		want                     string
	}{
		{"default extension", "org.example", "core", "1.2.3", "", "", "org/example/core/1.2.3/core-1.2.3.jar"},
		{"classifier", "org.example", "core", "1.2.3", "sources", "", "org/example/core/1.2.3/core-1.2.3-sources.jar"},
		{"pom", "org.springframework.boot", "spring-boot-dependencies", "4.0.2", "", "pom", "org/springframework/boot/spring-boot-dependencies/4.0.2/spring-boot-dependencies-4.0.2.pom"},
		{"blank classifier", "org.example", "core", "1.2.3", "   ", "jar", "org/example/core/1.2.3/core-1.2.3.jar"},
		{"dotted extension", "org.example", "core", "1.2.3", "", ".war", "org/example/core/1.2.3/core-1.2.3.war"},
		{"single segment group", "junit", "junit", "4.13.2", "", "jar", "junit/junit/4.13.2/junit-4.13.2.jar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Path(tt.group, tt.artifact, tt.version, tt.classifier, tt.ext)
			if err != nil {
				t.Fatalf("Path failed: %v", err)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("Path() = %q, want %q", got, filepath.FromSlash(tt.want))
			}

			url, err := URLPath(tt.group, tt.artifact, tt.version, tt.classifier, tt.ext)
			if err != nil {
				t.Fatalf("URLPath failed: %v", err)
			}
			if url != tt.want {
				t.Errorf("URLPath() = %q, want %q", url, tt.want)
			}
		})
	}
}

func TestPathInvalidIdentifier(t *testing.T) {
	tests := []struct {
		name                     string
		group, artifact, version string
		classifier               string
	}{
		{"empty group", "", "core", "1.0", ""},
		{"blank group", "  ", "core", "1.0", ""},
		{"empty group segment", "org..example", "core", "1.0", ""},
		{"trailing dot", "org.example.", "core", "1.0", ""},
		{"empty artifact", "org.example", "", "1.0", ""},
		{"empty version", "org.example", "core", "", ""},
		{"traversal artifact", "org.example", "..", "1.0", ""},
		{"separator in version", "org.example", "core", "1.0/../../x", ""},
		{"separator in classifier", "org.example", "core", "1.0", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Path(tt.group, tt.artifact, tt.version, tt.classifier, "jar")
			if !errors.Is(err, core.ErrInvalidIdentifier) {
				t.Errorf("Path() error = %v, want ErrInvalidIdentifier", err)
			}
		})
	}
}

func TestPathShapeWithoutClassifier(t *testing.T) {
	coords := []core.Coordinate{
		{Group: "org.example", Artifact: "core", Version: "1.2.3"},
		{Group: "io.micrometer", Artifact: "micrometer-observation", Version: "1.15.0"},
		{Group: "com.fasterxml.jackson.core", Artifact: "jackson-databind", Version: "2.19.0-rc1"},
	}

	for _, c := range coords {
		p, err := URLPath(c.Group, c.Artifact, c.Version, "", "jar")
		if err != nil {
			t.Fatalf("URLPath(%v) failed: %v", c, err)
		}
		parts := strings.Split(p, "/")
		groupDepth := len(strings.Split(c.Group, "."))
		if len(parts) != groupDepth+3 {
			t.Errorf("%q has %d segments, want group(%d) + artifact + version + file", p, len(parts), groupDepth)
		}
		if parts[len(parts)-1] != c.Artifact+"-"+c.Version+".jar" {
			t.Errorf("file name = %q, want %q", parts[len(parts)-1], c.Artifact+"-"+c.Version+".jar")
		}
	}
}

func TestPathSingleClassifierSuffix(t *testing.T) {
	p, err := URLPath("org.example", "core", "1.2.3", "sources", "jar")
	if err != nil {
		t.Fatalf("URLPath failed: %v", err)
	}
	file := p[strings.LastIndex(p, "/")+1:]
	if n := strings.Count(file, "-sources"); n != 1 {
		t.Errorf("file %q contains %d classifier suffixes, want 1", file, n)
	}
	if !strings.HasSuffix(file, "-sources.jar") {
		t.Errorf("file %q should end with -sources.jar", file)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		rel    string
		want   Entry
		wantOK bool
	}{
		{
			"org/example/core/1.2.3/core-1.2.3.jar",
			Entry{Coordinate: core.Coordinate{Group: "org.example", Artifact: "core", Version: "1.2.3"}, Extension: "jar"},
			true,
		},
		{
			"org/example/core/1.2.3/core-1.2.3-sources.jar",
			Entry{Coordinate: core.Coordinate{Group: "org.example", Artifact: "core", Version: "1.2.3"}, Classifier: "sources", Extension: "jar"},
			true,
		},
		{
			"org/example/core/1.2.3/core-1.2.3.pom",
			Entry{Coordinate: core.Coordinate{Group: "org.example", Artifact: "core", Version: "1.2.3"}, Extension: "pom"},
			true,
		},
		{"org/example/core/1.2.3/other-1.2.3.jar", Entry{}, false},
		{"core/1.2.3/core-1.2.3.jar", Entry{}, false},
		{"org/example/core/1.2.3/core-1.2.3", Entry{}, false},
		{"org/example/core/1.2.3/core-1.2.3x.jar", Entry{}, false},
		{
			"org/example/core/1.2.3/core-1.2.3-jdk1.8.jar",
			Entry{Coordinate: core.Coordinate{Group: "org.example", Artifact: "core", Version: "1.2.3"}, Classifier: "jdk1.8", Extension: "jar"},
			true,
		},
		{
			"org/example/dist/1.0/dist-1.0-bin.gz",
			Entry{Coordinate: core.Coordinate{Group: "org.example", Artifact: "dist", Version: "1.0"}, Classifier: "bin", Extension: "gz"},
			true,
		},
		// Only the text after the last dot is an extension.
		{"org/example/dist/1.0/dist-1.0.tar.gz", Entry{}, false},
		// Invalid coordinates are rejected before the file name is read.
		{"org//core/1.2.3/core-1.2.3.jar", Entry{}, false},
		{"org.example/core/1.2.3/core-1.2.3.jar", Entry{}, false},
		{"org/example/co:re/1.2.3/co:re-1.2.3.jar", Entry{}, false},
		{"org/example/core/../core-...jar", Entry{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, ok := Parse(filepath.FromSlash(tt.rel))
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.rel, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.rel, got, tt.want)
			}
		})
	}
}
