package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/target/console-auth/internal/adapters/redis"
	"github.com/target/console-auth/internal/bootstrap"
)

type cacheClearOptions struct {
	SubjectID string
}

func parseCacheClearFlags(args []string) (cacheClearOptions, error) {
	fs := flag.NewFlagSet("profile-cache-clear", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := cacheClearOptions{}
	fs.StringVar(&opts.SubjectID, "subject", "", "drop only the profile cached for this subject id")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func runProfileCacheClear(cmdCtx *commandContext, args []string) error {
	opts, err := parseCacheClearFlags(args)
	if err != nil {
		return err
	}
	client, err := bootstrap.OpenProfileCacheRedis(cmdCtx.Ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return errors.New("redis is not enabled (set REDIS_ENABLED=true)")
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	cache := redis.NewProfileCacheWithPrefix(client, cmdCtx.Config.Redis.KeyPrefix)
	if opts.SubjectID != "" {
		if err := cache.Delete(cmdCtx.Ctx, opts.SubjectID); err != nil {
			return fmt.Errorf("delete cached profile: %w", err)
		}
		return writef(os.Stdout, "dropped cached profile for %s\n", opts.SubjectID)
	}

	n, err := cache.Purge(cmdCtx.Ctx)
	if err != nil {
		return fmt.Errorf("purge profile cache: %w", err)
	}
	return writef(os.Stdout, "dropped %d cached profiles\n", n)
}
