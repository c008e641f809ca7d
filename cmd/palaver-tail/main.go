// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/palaver-chat/palaver/chat"
	"github.com/palaver-chat/palaver/transport"
)

// tailConfig is the YAML configuration file. The token is a long-lived
// bearer token for the instance; minting one is the deployment's
// concern.
type tailConfig struct {
	// BaseURL is the instance endpoint, e.g.
	// https://api.palaver.dev/v1/instances/4fa3c1.
	BaseURL string `yaml:"base_url"`
	// Token authenticates every request and subscription.
	Token string `yaml:"token"`
}

func loadConfig(path string) (*tailConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg tailConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base_url is required", path)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%s: token is required", path)
	}
	return &cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var roomName string
	var verbose bool

	flagSet := pflag.NewFlagSet("palaver-tail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (required)")
	flagSet.StringVar(&roomName, "room", "", "room name to tail (default: list rooms and exit)")
	flagSet.BoolVar(&verbose, "verbose", false, "enable debug logging")
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
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	instance, err := transport.New(transport.Config{
		BaseURL:       cfg.BaseURL,
		TokenProvider: transport.StaticToken(cfg.Token),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := chat.NewManager(chat.ManagerConfig{Instance: instance, Logger: logger})
	if err != nil {
		return err
	}
	defer manager.Close()

	currentUser, err := manager.Connect(ctx, &chat.Delegate{
		Error: func(err error) {
			logger.Warn("session event error", "error", err)
		},
	})
	if err != nil {
		return err
	}

	if roomName == "" {
		return listRooms(currentUser)
	}
	return tailRoom(ctx, currentUser, roomName)
}

func listRooms(currentUser *chat.CurrentUser) error {
	rooms := currentUser.Rooms()
	if len(rooms) == 0 {
		fmt.Println("no rooms; pass --room after joining one")
		return nil
	}
	for _, room := range rooms {
		visibility := "public"
		if room.IsPrivate() {
			visibility = "private"
		}
		fmt.Printf("%d\t%s\t%s\t%d members\n", room.ID, room.Name(), visibility, len(room.UserIDs()))
	}
	return nil
}

func tailRoom(ctx context.Context, currentUser *chat.CurrentUser, roomName string) error {
	var room *chat.Room
	for _, candidate := range currentUser.Rooms() {
		if candidate.Name() == roomName {
			room = candidate
			break
		}
	}
	if room == nil {
		return fmt.Errorf("not a member of any room named %q", roomName)
	}

	delegate := &chat.RoomDelegate{
		NewMessage: func(message chat.Message) {
			name := message.Sender.Name()
			if name == "" {
				name = message.Sender.ID
			}
			fmt.Printf("%s  %s: %s\n", message.CreatedAt, name, message.Text)
		},
		UserJoined: func(user *chat.User) {
			fmt.Printf("-- %s joined\n", user.ID)
		},
		UserLeft: func(user *chat.User) {
			fmt.Printf("-- %s left\n", user.ID)
		},
		Error: func(err error) {
			fmt.Fprintf(os.Stderr, "-- stream error: %v\n", err)
		},
	}

	subscription, err := currentUser.SubscribeToRoom(ctx, room, delegate, chat.DefaultMessageLimit)
	if err != nil {
		return err
	}
	defer subscription.End()

	<-ctx.Done()
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `palaver-tail — print a room's messages as they arrive.

Connects to the Palaver instance in the config file. Without --room it
lists the rooms the authenticated user is a member of. With --room it
subscribes to that room and prints messages, joins, and leaves until
interrupted.

The config file is YAML:

  base_url: https://api.palaver.dev/v1/instances/4fa3c1
  token: <bearer token>

Usage:
  palaver-tail --config palaver.yaml [--room NAME]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
