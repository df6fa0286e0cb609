// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

// snack-monitor is a read-only terminal UI for watching a live coding
// session: its file set, dependency resolution status, connected
// devices, and description. It never mutates session state — it
// subscribes to the same listener interfaces a host embeds and
// renders what it receives.
//
// Demo mode (default): creates an in-memory session via
// transport.Memory and seeds it with a couple of files, so the UI can
// be exercised with no broadcast server running.
//
// Connected mode (--websocket-url): attaches to a real channel over
// the websocket transport, read-only — it subscribes but never calls
// SendCodeAsync/StartAsync itself beyond the initial StartAsync needed
// to receive publications.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/starryskadi/snack-sdk/session"
	"github.com/starryskadi/snack-sdk/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var websocketURL string
	var channel string
	var demo bool

	flagSet := pflag.NewFlagSet("snack-monitor", pflag.ContinueOnError)
	flagSet.StringVar(&websocketURL, "websocket-url", "", "broadcast server websocket endpoint (demo mode if empty)")
	flagSet.StringVar(&channel, "channel", "", "channel to watch (required unless demo mode)")
	flagSet.BoolVar(&demo, "demo", false, "seed an in-memory demo session instead of connecting")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var transportClient transport.PubSub
	if websocketURL != "" && !demo {
		if channel == "" {
			return fmt.Errorf("--channel is required unless running in demo mode")
		}
		transportClient = transport.NewWebSocketPubSub(ctx, transport.WebSocketPubSubConfig{URL: websocketURL})
	} else {
		demo = true
		transportClient = transport.NewMemory(transport.NewMemoryHub())
	}

	sess, err := session.New(session.Config{
		Transport: transportClient,
	}, session.Options{
		SessionID: channel,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	runDone := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(runDone)
	}()

	if err := sess.StartAsync(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	if demo {
		seedDemoFiles(ctx, sess)
	}

	waitForEvent, _ := watch(sess)
	model := NewModel(sess, waitForEvent)

	program := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err = program.Run()
	cancel()
	<-runDone
	return err
}

// seedDemoFiles gives demo mode something to look at without a real
// editor attached.
func seedDemoFiles(ctx context.Context, sess *session.Session) {
	_ = sess.SendCodeAsync(ctx, map[string]session.File{
		"App.js": {
			Kind: session.CodeFile,
			Text: "import { Text, View } from 'react-native';\n\n" +
				"export default function App() {\n" +
				"  return (\n" +
				"    <View>\n" +
				"      <Text>Hello from the session monitor</Text>\n" +
				"    </View>\n" +
				"  );\n" +
				"}\n",
		},
		"package.json": {
			Kind: session.CodeFile,
			Text: "{\n  \"dependencies\": {}\n}\n",
		},
	})
	sess.SetName("demo session")
	sess.SetDescription("A session started by **snack-monitor** in demo mode.\n\nEdit files from a host process to see this view update live.")
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `snack-monitor — read-only terminal UI for watching a live coding session.

Usage:
  snack-monitor [flags]

Flags:
`)
	flagSet.PrintDefaults()
}
