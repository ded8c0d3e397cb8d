package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo/internal/mirror"
)

func (a *App) bootstrapCommand() *Command {
	o := &options{}
	return &Command{
		Name:    "bootstrap",
		Summary: "Resolve the project and populate the offline repository",
		Description: `Resolve every resolvable grouping of the project and copy each binary and
POM into the offline repository. Run it while the remote repository is
reachable; afterwards builds can use --mode consume.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
			o.register(fs)
			o.registerResolution(fs)
			return fs
		},
		Examples: []Example{
			{Description: "Populate ./offline-repo from Maven Central", Command: "offline-repo bootstrap"},
			{Description: "Use an internal mirror and keep going past broken groupings", Command: "offline-repo bootstrap --remote-url https://nexus.example.com/repository/maven-public --continue-on-error"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			logger, err := a.logger(o)
			if err != nil {
				return err
			}
			logger = logger.With("command", "bootstrap")

			p, err := a.pipeline(o, logger)
			if err != nil {
				return err
			}
			builder, err := p.builder(logger)
			if err != nil {
				return err
			}

			report, err := builder.Build(a.ctx(), p.project)
			if err != nil {
				return err
			}

			if o.json {
				if err := writeReportJSON(a.Stdout, report); err != nil {
					return err
				}
			} else {
				writeReport(a.Stdout, report)
			}
			return report.Err()
		},
	}
}

func writeReport(w io.Writer, r *mirror.Report) {
	fmt.Fprintf(w, "%d binaries and %d metadata files copied to %s\n",
		len(r.CopiedBinaries), len(r.CopiedMetadata), r.Root)
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  failed: %s: %v\n", f.Descriptor.Coordinate, f.Err)
	}
	for _, u := range r.Unresolved {
		fmt.Fprintf(w, "  unresolved: %v\n", u)
	}
}

type reportJSON struct {
	Root       string      `json:"root"`
	Binaries   []entryJSON `json:"binaries"`
	Metadata   []entryJSON `json:"metadata"`
	Failed     []failJSON  `json:"failed,omitempty"`
	Unresolved []failJSON  `json:"unresolved,omitempty"`
	Pristine   bool        `json:"pristine"`
}

type entryJSON struct {
	Coordinate string `json:"coordinate"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Digest     string `json:"blake3"`
}

type failJSON struct {
	Grouping   string `json:"grouping,omitempty"`
	Coordinate string `json:"coordinate,omitempty"`
	Error      string `json:"error"`
}

func writeReportJSON(w io.Writer, r *mirror.Report) error {
	out := reportJSON{
		Root:     r.Root,
		Binaries: entriesJSON(r.CopiedBinaries),
		Metadata: entriesJSON(r.CopiedMetadata),
		Pristine: r.Pristine(),
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, failJSON{
			Grouping:   f.Descriptor.Grouping,
			Coordinate: f.Descriptor.Coordinate.String(),
			Error:      f.Err.Error(),
		})
	}
	for _, u := range r.Unresolved {
		out.Unresolved = append(out.Unresolved, failJSON{
			Grouping:   u.Grouping,
			Coordinate: u.Coordinate,
			Error:      u.Error(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func entriesJSON(entries []mirror.Entry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			Coordinate: e.Coordinate.String(),
			Path:       e.Rel,
			Size:       e.Size,
			Digest:     e.Digest,
		})
	}
	return out
}
