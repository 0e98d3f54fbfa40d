package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// profile validates that the configured cloud credentials/endpoint can
// actually reach the backing bucket, the operational check an operator
// runs before pointing a real deployment at a new object store endpoint.
var (
	profileStore  = ObjectStoreConfig{Provider: "s3"}
	profilePrefix string

	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Validate cloud credentials and connectivity to the configured object store",
		RunE:  profileExec,
	}
)

func init() {
	profileCmd.Flags().StringVar(&profileStore.Provider, "provider", "s3", "Object store provider: memory or s3")
	profileCmd.Flags().StringVar(&profileStore.BucketName, "bucket", envOr("STORAGE_BUCKET", "chroma"), "Bucket name")
	profileCmd.Flags().StringVar(&profileStore.Region, "region", envOr("STORAGE_REGION", "us-east-1"), "Bucket region")
	profileCmd.Flags().StringVar(&profileStore.Endpoint, "endpoint", envOr("STORAGE_ENDPOINT", ""), "S3-compatible endpoint override")
	profileCmd.Flags().StringVar(&profileStore.AccessKeyID, "access-key-id", envOr("AUTH_CREDENTIALS", ""), "Static access key; no flag sets a secret key, so the default AWS credential chain is always used")
	profileCmd.Flags().BoolVar(&profileStore.ForcePathStyle, "force-path-style", false, "Use path-style S3 addressing")
	profileCmd.Flags().StringVar(&profilePrefix, "check-prefix", "", "Prefix to probe with HasPrefix as the connectivity check")
}

func profileExec(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	store, err := buildObjectStore(ctx, profileStore)
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("building object store from profile: %w", err))
	}

	exists, err := store.HasPrefix(ctx, profilePrefix)
	if err != nil {
		return exitWith(exitTransientErr, fmt.Errorf("connectivity check against bucket %q failed: %w", profileStore.BucketName, err))
	}

	log.Info().
		Str("provider", profileStore.Provider).
		Str("bucket", profileStore.BucketName).
		Str("region", profileStore.Region).
		Bool("prefix_exists", exists).
		Msg("object store profile is reachable")
	return nil
}
