// Package main implements the objectstream CLI, a thin operational surface
// over the object store: put, get, inspect, delete, rename, link, and watch
// objects in a JetStream-backed bucket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/objectstream/metric"
	"github.com/c360/objectstream/natsclient"
	"github.com/c360/objectstream/objectstore"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "objectstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, args := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if len(args) == 0 {
		printDetailedHelp()
		return fmt.Errorf("no command given")
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	fileCfg, err := loadFileConfig(cliCfg.ConfigPath, cliCfg.configExplicit)
	if err != nil {
		return err
	}

	bucket := cliCfg.Bucket
	if bucket == "" {
		bucket = fileCfg.Bucket.Name
	}
	if bucket == "" {
		return fmt.Errorf("no bucket given (use --bucket or the config file)")
	}

	storeCfg, err := bucketConfig(fileCfg, bucket)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command, rest := args[0], args[1:]

	client, registry, err := connect(ctx, cliCfg, fileCfg, logger, command == "watch")
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	storeOpts := []objectstore.StoreOption{objectstore.WithLogger(logger)}
	if registry != nil {
		storeOpts = append(storeOpts, objectstore.WithMetrics(registry))
	}
	store, err := objectstore.New(ctx, client, storeCfg, storeOpts...)
	if err != nil {
		return err
	}

	switch command {
	case "put":
		return cmdPut(ctx, cliCfg, store, rest)
	case "get":
		return cmdGet(ctx, cliCfg, store, rest)
	case "info":
		return cmdInfo(ctx, cliCfg, store, rest)
	case "rm":
		return cmdRemove(ctx, cliCfg, store, rest)
	case "rename":
		return cmdRename(ctx, cliCfg, store, rest)
	case "link":
		return cmdLink(ctx, cliCfg, store, client, rest)
	case "watch":
		return cmdWatch(ctx, store, registry, cliCfg, rest)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// connect builds and connects the NATS client, plus a metrics registry when
// a metrics port is configured. Long-running commands connect with
// persistent retry; one-shot commands fail fast.
func connect(ctx context.Context, cliCfg *CLIConfig, fileCfg *FileConfig, logger *slog.Logger, persistent bool) (*natsclient.Client, *metric.MetricsRegistry, error) {
	url := cliCfg.NATSURL
	if fileCfg.NATS.URL != "" && url == "nats://127.0.0.1:4222" {
		url = fileCfg.NATS.URL
	}

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(&slogAdapter{logger: logger}),
	}
	if fileCfg.NATS.Name != "" {
		opts = append(opts, natsclient.WithName(fileCfg.NATS.Name))
	}
	if fileCfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(fileCfg.NATS.Username, fileCfg.NATS.Password))
	}
	if fileCfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(fileCfg.NATS.Token))
	}
	if fileCfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(fileCfg.NATS.Timeout))
	}

	var registry *metric.MetricsRegistry
	if cliCfg.MetricsPort > 0 {
		registry = metric.NewMetricsRegistry()
		opts = append(opts, natsclient.WithMetrics(registry))
	}

	client, err := natsclient.NewClient(url, opts...)
	if err != nil {
		return nil, nil, err
	}
	if persistent {
		err = client.ConnectWithRetry(ctx)
	} else {
		err = client.Connect(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	return client, registry, nil
}

func cmdPut(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	description := fs.String("description", "", "Object description")
	chunkSize := fs.Uint("chunk-size", 0, "Override chunk size for this object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: put <name> [file]")
	}
	name := fs.Arg(0)

	src := io.Reader(os.Stdin)
	if fs.NArg() > 1 && fs.Arg(1) != "-" {
		f, err := os.Open(fs.Arg(1))
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	meta := objectstore.ObjectMeta{Name: name, Description: *description}
	if *chunkSize > 0 {
		if *chunkSize > math.MaxUint32 {
			return fmt.Errorf("chunk-size %d out of range", *chunkSize)
		}
		meta.Opts = &objectstore.MetaOptions{MaxChunkSize: uint32(*chunkSize)}
	}

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	info, err := store.Put(opCtx, meta, src)
	if err != nil {
		return err
	}
	slog.Info("Object stored",
		"bucket", info.Bucket,
		"name", info.Name,
		"size", info.Size,
		"chunks", info.Chunks,
		"digest", info.Digest)
	return nil
}

func cmdGet(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: get <name> [file]")
	}
	name := fs.Arg(0)

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	if fs.NArg() > 1 && fs.Arg(1) != "-" {
		f, err := os.Create(fs.Arg(1))
		if err != nil {
			return err
		}
		info, err := store.GetTo(opCtx, name, f)
		if err != nil {
			_ = os.Remove(fs.Arg(1))
			return err
		}
		slog.Info("Object written",
			"name", info.Name,
			"file", fs.Arg(1),
			"size", info.Size)
		return nil
	}

	_, err := store.GetTo(opCtx, name, os.Stdout, objectstore.LeaveOpen())
	return err
}

func cmdInfo(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	deleted := fs.Bool("deleted", false, "Include soft-deleted records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: info <name>")
	}

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	var opts []objectstore.InfoOpt
	if *deleted {
		opts = append(opts, objectstore.IncludeDeleted())
	}
	info, err := store.GetInfo(opCtx, fs.Arg(0), opts...)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdRemove(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rm <name>")
	}

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	if err := store.Delete(opCtx, args[0]); err != nil {
		return err
	}
	slog.Info("Object deleted", "bucket", store.Bucket(), "name", args[0])
	return nil
}

func cmdRename(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rename <name> <new-name>")
	}

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	info, err := store.GetInfo(opCtx, args[0])
	if err != nil {
		return err
	}
	meta := info.ObjectMeta
	meta.Name = args[1]

	if _, err := store.UpdateMeta(opCtx, args[0], meta); err != nil {
		return err
	}
	slog.Info("Object renamed", "from", args[0], "to", args[1])
	return nil
}

func cmdLink(ctx context.Context, cliCfg *CLIConfig, store *objectstore.Store, client *natsclient.Client, args []string) error {
	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	targetBucket := fs.String("target-bucket", "", "Bucket holding the target object (default: same bucket)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: link <name> <target> [--target-bucket=...]")
	}
	name, targetName := fs.Arg(0), fs.Arg(1)

	opCtx, cancel := context.WithTimeout(ctx, cliCfg.Timeout)
	defer cancel()

	targetStore := store
	if *targetBucket != "" && *targetBucket != store.Bucket() {
		var err error
		targetStore, err = objectstore.New(opCtx, client, objectstore.DefaultConfig(*targetBucket))
		if err != nil {
			return err
		}
	}

	target, err := targetStore.GetInfo(opCtx, targetName)
	if err != nil {
		return err
	}
	info, err := store.AddLink(opCtx, name, target)
	if err != nil {
		return err
	}
	slog.Info("Link created",
		"bucket", info.Bucket,
		"name", info.Name,
		"target_bucket", info.Opts.Link.Bucket,
		"target", info.Opts.Link.Name)
	return nil
}

func cmdWatch(ctx context.Context, store *objectstore.Store, registry *metric.MetricsRegistry, cliCfg *CLIConfig, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	updatesOnly := fs.Bool("updates-only", false, "Skip history, deliver new updates only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if registry != nil {
		server := metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
	}

	var opts []objectstore.WatchOpt
	if *updatesOnly {
		opts = append(opts, objectstore.UpdatesOnly())
	}
	w, err := store.Watch(ctx, opts...)
	if err != nil {
		return err
	}
	defer w.Stop()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case info, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if err := enc.Encode(info); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// slogAdapter bridges slog to the natsclient Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Printf(format string, v ...any) {
	a.logger.Info(fmt.Sprintf(format, v...))
}

func (a *slogAdapter) Errorf(format string, v ...any) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *slogAdapter) Debugf(format string, v ...any) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}
