// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// snack-host runs a live coding session against a real (or, absent a
// --websocket-url, in-memory) broadcast transport. It loads session
// options from a YAML file, lets CLI flags override individual
// fields, and keeps the session running until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/starryskadi/snack-sdk/bundler"
	"github.com/starryskadi/snack-sdk/config"
	"github.com/starryskadi/snack-sdk/credstore"
	"github.com/starryskadi/snack-sdk/lib/secret"
	"github.com/starryskadi/snack-sdk/objectstore"
	"github.com/starryskadi/snack-sdk/session"
	"github.com/starryskadi/snack-sdk/snackapi"
	"github.com/starryskadi/snack-sdk/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     string
		sdkVersion     string
		sessionID      string
		host           string
		name           string
		description    string
		snackID        string
		verbose        bool
		token          string
		tokenFile      string
		identityFile   string
		tokenCacheFile string
		websocketURL   string
		bundlerURL     string
		objectStoreURL string
		saveAPIURL     string
		cacheDir       string
		logLevel       string
	)

	flagSet := pflag.NewFlagSet("snack-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a session options YAML file (default: $SNACK_SDK_CONFIG)")
	flagSet.StringVar(&sdkVersion, "sdk-version", "", "Expo SDK version")
	flagSet.StringVar(&sessionID, "session-id", "", "channel identifier (default: freshly generated)")
	flagSet.StringVar(&host, "host", "", "editor host used to build share URLs")
	flagSet.StringVar(&name, "name", "", "session display name")
	flagSet.StringVar(&description, "description", "", "session description")
	flagSet.StringVar(&snackID, "snack-id", "", "resume a previously saved snack")
	flagSet.BoolVar(&verbose, "verbose", false, "enable verbose log events")
	flagSet.StringVar(&token, "token", "", "bearer token for save/download calls (prefer --token-file)")
	flagSet.StringVar(&tokenFile, "token-file", "", "path to a file holding the bearer token")
	flagSet.StringVar(&identityFile, "identity-file", "", "age identity used to decrypt the cached token (default: ~/.cache/snack-sdk/identity.age)")
	flagSet.StringVar(&tokenCacheFile, "token-cache", "", "path to cache the bearer token, age-encrypted (falls back to credential_store_path; no caching if neither is set)")
	flagSet.StringVar(&websocketURL, "websocket-url", "", "broadcast hub websocket endpoint (default: in-memory demo transport)")
	flagSet.StringVar(&bundlerURL, "bundler-url", "", "dependency-resolution bundler service URL")
	flagSet.StringVar(&objectStoreURL, "object-store-url", "", "asset/spill upload endpoint URL")
	flagSet.StringVar(&saveAPIURL, "save-api-url", "", "save/download endpoint base URL")
	flagSet.StringVar(&cacheDir, "cache-dir", "", "dependency engine promise-cache directory")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	var options config.SessionOptions
	if configPath != "" || os.Getenv(config.EnvVar) != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		options = *loaded
	}

	applyFlagOverrides(flagSet, &options, overrides{
		sdkVersion: sdkVersion, sessionID: sessionID, host: host, name: name,
		description: description, snackID: snackID, verbose: verbose,
		token: token, tokenFile: tokenFile, websocketURL: websocketURL,
		bundlerURL: bundlerURL, objectStoreURL: objectStoreURL,
		saveAPIURL: saveAPIURL, cacheDir: cacheDir,
	})

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(logLevel)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	authToken, err := resolveAuthorizationToken(options, identityFile, tokenCacheFile, logger)
	if err != nil {
		return err
	}
	if authToken != "" {
		options.AuthorizationToken = authToken
	}

	transportClient, closeTransport := buildTransport(signalCtx, options, logger)
	defer closeTransport()

	var bundlerClient *bundler.Client
	if options.BundlerURL != "" {
		bundlerClient = bundler.NewClient(bundler.Config{BundlerURL: options.BundlerURL})
	}

	var storeClient *objectstore.Client
	if options.ObjectStoreURL != "" {
		storeClient = objectstore.NewClient(objectstore.Config{BaseURL: options.ObjectStoreURL, Logger: logger})
	}

	var apiClient *snackapi.Client
	if options.SaveAPIURL != "" {
		apiClient = snackapi.NewClient(snackapi.Config{BaseURL: options.SaveAPIURL})
	}

	sess, err := session.New(session.Config{
		Transport: transportClient,
		Store:     storeClient,
		Bundler:   bundlerClient,
		API:       apiClient,
		Logger:    logger,
		CacheDir:  options.CacheDir,
	}, session.Options{
		SDKVersion:         options.SDKVersion,
		Verbose:            options.Verbose,
		SessionID:          options.SessionID,
		Host:               options.Host,
		SnackID:            options.SnackID,
		Name:               options.Name,
		Description:        options.Description,
		Dependencies:        options.Dependencies,
		AuthorizationToken: options.AuthorizationToken,
	})
	if err != nil {
		return fmt.Errorf("snack-host: constructing session: %w", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	if err := sess.StartAsync(signalCtx); err != nil {
		return fmt.Errorf("snack-host: starting session: %w", err)
	}
	logger.Info("session started", "channel", sess.Channel())

	sess.AddLogListener(func(event session.LogEvent) {
		logger.Log(context.Background(), event.Level, event.Message)
	})
	sess.AddErrorListener(func(event session.ErrorEvent) {
		logger.Error("dependency resolution failed", "name", event.Name, "version", event.Version, "message", event.Message)
	})

	<-signalCtx.Done()
	logger.Info("shutting down")
	cancel()
	<-runDone

	return nil
}

type overrides struct {
	sdkVersion, sessionID, host, name, description, snackID string
	verbose                                                 bool
	token, tokenFile                                        string
	websocketURL, bundlerURL, objectStoreURL, saveAPIURL     string
	cacheDir                                                 string
}

// applyFlagOverrides merges explicitly-set CLI flags over the loaded
// config file, CLI taking precedence. A flag left at its zero value
// and never passed on the command line does not clobber a value the
// config file already supplied.
func applyFlagOverrides(flagSet *pflag.FlagSet, options *config.SessionOptions, o overrides) {
	if flagSet.Changed("sdk-version") {
		options.SDKVersion = o.sdkVersion
	}
	if flagSet.Changed("session-id") {
		options.SessionID = o.sessionID
	}
	if flagSet.Changed("host") {
		options.Host = o.host
	}
	if flagSet.Changed("name") {
		options.Name = o.name
	}
	if flagSet.Changed("description") {
		options.Description = o.description
	}
	if flagSet.Changed("snack-id") {
		options.SnackID = o.snackID
	}
	if flagSet.Changed("verbose") {
		options.Verbose = o.verbose
	}
	if flagSet.Changed("token") {
		options.AuthorizationToken = o.token
	}
	if flagSet.Changed("token-file") {
		options.AuthorizationTokenFile = o.tokenFile
	}
	if flagSet.Changed("websocket-url") {
		options.Transport.WebSocketURL = o.websocketURL
	}
	if flagSet.Changed("bundler-url") {
		options.BundlerURL = o.bundlerURL
	}
	if flagSet.Changed("object-store-url") {
		options.ObjectStoreURL = o.objectStoreURL
	}
	if flagSet.Changed("save-api-url") {
		options.SaveAPIURL = o.saveAPIURL
	}
	if flagSet.Changed("cache-dir") {
		options.CacheDir = o.cacheDir
	}
}

// resolveAuthorizationToken returns the raw token string to use, in
// order of precedence: an inline token from flags/config, a token
// file, a cached age-encrypted token, or an interactive prompt (whose
// result is cached for next run if a cache path is configured).
func resolveAuthorizationToken(options config.SessionOptions, identityFile, tokenCacheFile string, logger *slog.Logger) (string, error) {
	if options.AuthorizationToken != "" {
		return options.AuthorizationToken, nil
	}
	if options.AuthorizationTokenFile != "" {
		buffer, err := secret.ReadFromPath(options.AuthorizationTokenFile)
		if err != nil {
			return "", fmt.Errorf("snack-host: reading token file: %w", err)
		}
		defer buffer.Close()
		return buffer.String(), nil
	}

	cachePath := tokenCacheFile
	if cachePath == "" && options.CredentialStorePath != "" {
		cachePath = options.CredentialStorePath
	}
	if cachePath == "" {
		return "", nil
	}

	idPath := identityFile
	if idPath == "" {
		cacheDir, err := os.UserCacheDir()
		if err == nil {
			idPath = filepath.Join(cacheDir, "snack-sdk", "identity.age")
		}
	}

	identity, err := credstore.LoadOrCreateIdentity(idPath)
	if err != nil {
		return "", fmt.Errorf("snack-host: loading identity: %w", err)
	}

	if buffer, err := credstore.LoadToken(cachePath, identity); err == nil {
		defer buffer.Close()
		return buffer.String(), nil
	}

	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFD) {
		return "", fmt.Errorf("snack-host: no terminal available for interactive token prompt (use --token-file)")
	}

	fmt.Fprint(os.Stderr, "Authorization token: ")
	entered, err := term.ReadPassword(stdinFD)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("snack-host: reading token from terminal: %w", err)
	}

	buffer, err := secret.NewFromBytes(entered)
	if err != nil {
		return "", fmt.Errorf("snack-host: protecting entered token: %w", err)
	}
	defer buffer.Close()

	if err := credstore.SaveToken(cachePath, buffer, identity); err != nil {
		logger.Warn("could not cache authorization token", "error", err)
	}

	return buffer.String(), nil
}

func buildTransport(ctx context.Context, options config.SessionOptions, logger *slog.Logger) (transport.PubSub, func()) {
	if options.Transport.WebSocketURL == "" {
		logger.Info("no --websocket-url configured, using the in-memory demo transport")
		return transport.NewMemory(transport.NewMemoryHub()), func() {}
	}
	ws := transport.NewWebSocketPubSub(ctx, transport.WebSocketPubSubConfig{
		URL:    options.Transport.WebSocketURL,
		Logger: logger,
	})
	return ws, ws.Close
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `snack-host — runs a live Snack coding session against a real (or in-memory) transport.

Usage:
  snack-host [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
