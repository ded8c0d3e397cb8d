package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo/internal/core"
	"github.com/git-pkgs/offlinerepo/internal/resolve"
)

// groupingFilter restricts a project to named groupings.
type groupingFilter struct {
	project resolve.Project
	names   map[string]bool
}

func (f groupingFilter) Groupings() []core.Grouping {
	var out []core.Grouping
	for _, g := range f.project.Groupings() {
		if f.names[g.Name] {
			out = append(out, g)
		}
	}
	return out
}

func (a *App) resolveCommand() *Command {
	o := &options{}
	var (
		groupings []string
		metadata  bool
	)
	return &Command{
		Name:    "resolve",
		Summary: "Print the resolved artifacts as package URLs",
		Description: `Resolve the project like bootstrap does and print one package URL per
artifact, without copying anything.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			o.register(fs)
			o.registerResolution(fs)
			fs.StringSliceVarP(&groupings, "grouping", "g", nil, "resolve only these groupings")
			fs.BoolVar(&metadata, "metadata", false, "also print POM artifacts")
			return fs
		},
		Examples: []Example{
			{Description: "Runtime classpath of the project", Command: "offline-repo resolve -g runtimeClasspath"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			logger, err := a.logger(o)
			if err != nil {
				return err
			}
			p, err := a.pipeline(o, logger.With("command", "resolve"))
			if err != nil {
				return err
			}

			var project resolve.Project = p.project
			if len(groupings) > 0 {
				names := make(map[string]bool, len(groupings))
				for _, name := range groupings {
					g, ok := p.project.Grouping(name)
					if !ok {
						return fmt.Errorf("unknown grouping %q", name)
					}
					if !g.Resolvable {
						return fmt.Errorf("grouping %q is not resolvable", name)
					}
					names[name] = true
				}
				project = groupingFilter{project: p.project, names: names}
			}

			res, err := p.driver.ResolveAll(a.ctx(), project)
			if err != nil {
				return err
			}
			artifacts := res.Binaries
			if metadata {
				artifacts = append(artifacts, res.Metadata...)
			}

			if o.json {
				type row struct {
					Grouping string `json:"grouping"`
					PURL     string `json:"purl"`
					File     string `json:"file"`
					License  string `json:"license,omitempty"`
				}
				rows := make([]row, 0, len(artifacts))
				for _, d := range artifacts {
					rows = append(rows, row{Grouping: d.Grouping, PURL: core.DescriptorPURL(d), File: d.File, License: d.License})
				}
				enc := json.NewEncoder(a.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rows); err != nil {
					return err
				}
			} else {
				for _, d := range artifacts {
					fmt.Fprintln(a.Stdout, core.DescriptorPURL(d))
				}
			}

			for _, f := range res.Failures {
				logger.Warn("grouping unresolved", "grouping", f.Grouping, "error", f)
			}
			if len(res.Failures) > 0 {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
}
