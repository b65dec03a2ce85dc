package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/publish"
	"github.com/easel-dev/easel/internal/workspace"
)

func publishCmd() *cobra.Command {
	var (
		bucket string
		prefix string
		region string
	)

	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Upload a rendered diagram to S3",
		Long: `Upload the rendered artifact of a workspace diagram to an S3 bucket.

Credentials come from the standard AWS environment (env vars, shared
config, instance roles). The bucket can be set in easel.json under
"publish" or with --bucket.

Examples:
  easel publish checkout-flow
  easel publish checkout-flow --bucket=my-diagrams --prefix=docs/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(args[0], bucket, prefix, region)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "S3 bucket to upload to (default from easel.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix inside the bucket (default from easel.json)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default from the AWS environment)")

	return cmd
}

func runPublish(id, bucket, prefix, region string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if bucket != "" {
		cfg.Publish.Bucket = bucket
	}
	if prefix != "" {
		cfg.Publish.Prefix = prefix
	}
	if region != "" {
		cfg.Publish.Region = region
	}

	logger := newLogger(slog.LevelWarn)
	store, err := workspace.New(cfg.WorkspacePath(), logger)
	if err != nil {
		return err
	}

	path, format, err := store.Artifact(id)
	if err != nil {
		errorMsg("No rendered artifact for %q", id)
		info("Run 'easel render' first")
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pub, err := publish.Connect(ctx, cfg.Publish, logger)
	if err != nil {
		return err
	}
	url, err := pub.Publish(ctx, id, format, data)
	if err != nil {
		return err
	}

	success("Published %s", url)
	return nil
}
