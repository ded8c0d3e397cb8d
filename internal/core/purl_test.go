package core

import (
	"errors"
	"testing"
)

func TestParsePURL(t *testing.T) {
	tests := []struct {
		input    string
		wantNS   string
		wantName string
		wantVer  string
		wantErr  bool
	}{
		{"pkg:maven/org.apache.commons/commons-lang3", "org.apache.commons", "commons-lang3", "", false},
		{"pkg:maven/org.apache.commons/commons-lang3@3.12.0", "org.apache.commons", "commons-lang3", "3.12.0", false},
		{"pkg:maven/org.springframework.boot/spring-boot-starter-web@4.0.2", "org.springframework.boot", "spring-boot-starter-web", "4.0.2", false},

		// Not maven
		{"pkg:cargo/serde@1.0.0", "", "", "", true},
		// Missing pkg: prefix
		{"maven/org.example/core", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if p.Namespace != tt.wantNS {
				t.Errorf("Namespace = %q, want %q", p.Namespace, tt.wantNS)
			}
			if p.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name, tt.wantName)
			}
			if p.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", p.Version, tt.wantVer)
			}
			if p.Coordinate().Module() != tt.wantNS+":"+tt.wantName {
				t.Errorf("Module() = %q", p.Coordinate().Module())
			}
		})
	}
}

func TestParsePURLRejectsOtherTypes(t *testing.T) {
	_, err := ParsePURL("pkg:npm/lodash@4.17.21")
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("ParsePURL(npm) error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestNewPURL(t *testing.T) {
	c := Coordinate{Group: "org.example", Artifact: "core", Version: "1.2.3"}

	tests := []struct {
		name       string
		classifier string
		ext        string
		want       string
	}{
		{"plain jar", "", "jar", "pkg:maven/org.example/core@1.2.3"},
		{"no extension", "", "", "pkg:maven/org.example/core@1.2.3"},
		{"pom", "", "pom", "pkg:maven/org.example/core@1.2.3?type=pom"},
		{"classifier", "sources", "jar", "pkg:maven/org.example/core@1.2.3?classifier=sources"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPURL(c, tt.classifier, tt.ext)
			got := p.ToString()
			if got != tt.want {
				t.Errorf("NewPURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPURLCoordinateRoundTrip(t *testing.T) {
	c := Coordinate{Group: "jakarta.persistence", Artifact: "jakarta.persistence-api", Version: "3.2.0"}
	built := NewPURL(c, "", "jar")
	p, err := ParsePURL(built.ToString())
	if err != nil {
		t.Fatalf("ParsePURL failed: %v", err)
	}
	if p.Coordinate() != c {
		t.Errorf("Coordinate() = %v, want %v", p.Coordinate(), c)
	}
}

func TestPURLArtifact(t *testing.T) {
	tests := []struct {
		purl           string
		wantClassifier string
		wantExt        string
	}{
		{"pkg:maven/com.google.guava/guava@33.4.0-jre", "", "jar"},
		{"pkg:maven/com.google.guava/guava@33.4.0-jre?classifier=sources", "sources", "jar"},
		{"pkg:maven/org.springframework.boot/spring-boot-dependencies@4.0.2?type=pom", "", "pom"},
	}
	for _, tt := range tests {
		p, err := ParsePURL(tt.purl)
		if err != nil {
			t.Fatalf("ParsePURL(%q): %v", tt.purl, err)
		}
		_, classifier, ext := p.Artifact()
		if classifier != tt.wantClassifier || ext != tt.wantExt {
			t.Errorf("Artifact(%q) = %q %q, want %q %q", tt.purl, classifier, ext, tt.wantClassifier, tt.wantExt)
		}
	}
}
