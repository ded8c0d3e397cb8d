package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo/internal/verify"
)

func (a *App) verifyCommand() *Command {
	o := &options{}
	var (
		extension       string
		requireMetadata bool
	)
	return &Command{
		Name:    "verify",
		Summary: "Check that the offline repository contains binary artifacts",
		Description: `Walk the offline repository and count binary artifacts. The command fails
when none is found, which means the repository was never bootstrapped or
was emptied.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			o.register(fs)
			fs.StringVar(&extension, "extension", "jar", "binary artifact extension to count")
			fs.BoolVar(&requireMetadata, "require-metadata", false, "also fail when a binary has no POM")
			return fs
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			logger, err := a.logger(o)
			if err != nil {
				return err
			}
			cfg, err := o.config()
			if err != nil {
				return err
			}
			root, err := cfg.RepositoryRoot(o.projectDir)
			if err != nil {
				return err
			}

			res, verr := verify.Verify(root, verify.Options{Extension: extension, RequireMetadata: requireMetadata})
			if res != nil {
				logger.Debug("repository scanned", "root", root, "binaries", res.BinaryCount, "metadata", res.MetadataCount)
				for _, rel := range res.MissingMetadata {
					logger.Warn("binary without metadata", "path", rel)
				}
			}
			if verr != nil {
				return verr
			}

			if o.json {
				enc := json.NewEncoder(a.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"root":     res.Root,
					"binaries": res.BinaryCount,
					"metadata": res.MetadataCount,
				})
			}
			fmt.Fprintf(a.Stdout, "offline repository OK: %d %s artifacts, %d POMs under %s\n",
				res.BinaryCount, extension, res.MetadataCount, res.Root)
			return nil
		},
	}
}
