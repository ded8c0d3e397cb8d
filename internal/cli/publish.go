package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/git-pkgs/offlinerepo/internal/publish"
	"github.com/git-pkgs/offlinerepo/internal/verify"
)

func (a *App) publishCommand() *Command {
	o := &options{}
	var endpoint, bucket, prefix string
	return &Command{
		Name:    "publish",
		Summary: "Upload the offline repository to S3-compatible storage",
		Description: `Verify the offline repository, then upload every file that follows the
Maven layout to a bucket. The bucket (plus prefix) can then be used as a
remote repository URL. Credentials come from the configuration file or
OFFLINE_REPO_S3_ACCESS_KEY and OFFLINE_REPO_S3_SECRET_KEY.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("publish", pflag.ContinueOnError)
			o.register(fs)
			fs.StringVar(&endpoint, "endpoint", "", "S3 endpoint host:port")
			fs.StringVar(&bucket, "bucket", "", "target bucket")
			fs.StringVar(&prefix, "prefix", "", "object key prefix")
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
			logger = logger.With("command", "publish")

			cfg, err := o.config()
			if err != nil {
				return err
			}
			root, err := cfg.RepositoryRoot(o.projectDir)
			if err != nil {
				return err
			}
			if _, err := verify.Verify(root, verify.Options{}); err != nil {
				return err
			}

			pc := cfg.Publish
			if endpoint != "" {
				pc.Endpoint = endpoint
			}
			if bucket != "" {
				pc.Bucket = bucket
			}
			if prefix != "" {
				pc.Prefix = prefix
			}
			store, err := publish.NewS3Store(publish.Config{
				Endpoint:  pc.Endpoint,
				Region:    pc.Region,
				AccessKey: pc.AccessKey,
				SecretKey: pc.SecretKey,
				Bucket:    pc.Bucket,
				UseSSL:    pc.UseSSL,
			})
			if err != nil {
				return err
			}

			res, err := publish.NewPublisher(store,
				publish.WithPrefix(pc.Prefix),
				publish.WithLogger(logger),
			).Publish(a.ctx(), root)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Stdout, "%d objects uploaded to %s/%s\n", len(res.Uploaded), pc.Bucket, publish.ObjectKey(pc.Prefix, ""))
			return nil
		},
	}
}
