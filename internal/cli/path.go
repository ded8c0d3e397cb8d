package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/layout"
)

// parseArtifact parses "group:artifact:version[:classifier][@ext]" or a
// Maven package URL as printed by the resolve command.
func parseArtifact(s string) (core.Coordinate, string, string, error) {
	if strings.HasPrefix(s, "pkg:") {
		p, err := core.ParsePURL(s)
		if err != nil {
			return core.Coordinate{}, "", "", err
		}
		c, classifier, ext := p.Artifact()
		if c.Group == "" || c.Version == "" {
			return core.Coordinate{}, "", "", &core.IdentifierError{Field: "purl", Value: s}
		}
		return c, classifier, ext, nil
	}

	ext := layout.DefaultExtension
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		ext = s[at+1:]
		s = s[:at]
		if ext == "" {
			return core.Coordinate{}, "", "", &core.IdentifierError{Field: "extension", Value: ext}
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return core.Coordinate{}, "", "", &core.IdentifierError{Field: "coordinate", Value: s}
	}
	c, err := core.ParseCoordinate(strings.Join(parts[:3], ":"))
	if err != nil {
		return core.Coordinate{}, "", "", err
	}
	if c.Version == "" {
		return core.Coordinate{}, "", "", &core.IdentifierError{Field: "version", Value: s}
	}
	classifier := ""
	if len(parts) == 4 {
		classifier = parts[3]
	}
	return c, classifier, ext, nil
}

func (a *App) pathCommand() *Command {
	o := &options{}
	var absolute bool
	return &Command{
		Name:    "path",
		Summary: "Print the repository path of an artifact",
		Usage:   "offline-repo path [flags] <group:artifact:version[:classifier][@ext] | purl>...",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("path", pflag.ContinueOnError)
			o.register(fs)
			fs.BoolVarP(&absolute, "absolute", "a", false, "prefix the path with the repository root")
			return fs
		},
		Examples: []Example{
			{Command: "offline-repo path org.slf4j:slf4j-api:2.0.16"},
			{Description: "Sources jar", Command: "offline-repo path com.google.guava:guava:33.4.0-jre:sources"},
			{Description: "POM file", Command: "offline-repo path org.springframework.boot:spring-boot-dependencies:4.0.2@pom"},
			{Description: "Package URL from resolve output", Command: "offline-repo path pkg:maven/org.slf4j/slf4j-api@2.0.16"},
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("coordinate required")
			}

			root := ""
			if absolute {
				cfg, err := o.config()
				if err != nil {
					return err
				}
				if root, err = cfg.RepositoryRoot(o.projectDir); err != nil {
					return err
				}
			}

			for _, arg := range args {
				c, classifier, ext, err := parseArtifact(arg)
				if err != nil {
					return err
				}
				rel, err := layout.CoordinatePath(c, classifier, ext)
				if err != nil {
					return err
				}
				if root != "" {
					rel = filepath.Join(root, rel)
				}
				fmt.Fprintln(a.Stdout, rel)
			}
			return nil
		},
	}
}
