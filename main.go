// BurnItNow - An optical disc burning front end
// Copyright (C) 2010-2012 BurnItNow Team, 2025 Go port
//
// Distributed under the terms of the MIT License.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of this
// software and associated documentation files, to deal in the Software without restriction,
// subject to the following condition: the above copyright notice and this permission notice
// shall be included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
)

// application carries the state shared by all subcommands
type application struct {
	configPath string
	logLevel   string

	cfg    *Config
	logger *zap.Logger

	// run replaces the process runner of the device scanner when set
	run commandRunner
}

func main() {
	a := &application{}
	rootCmd := newRootCmd(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	a.sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *application) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "burnitnow",
		Short: "An optical disc burning front end",
		Long: `BurnItNow finds the optical drives attached to the system with cdrecord
and prepares data, audio and image compilations for burning.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: burnitnow.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	// Add subcommands
	rootCmd.AddCommand(createDevicesCmd(a))
	rootCmd.AddCommand(createBurnCmd(a))
	rootCmd.AddCommand(createBuildImageCmd(a))
	rootCmd.AddCommand(createListMediaCmd())
	rootCmd.AddCommand(createUsageCmd(a))
	rootCmd.AddCommand(createGUICmd(a))

	return rootCmd
}

// setup loads configuration and creates the logger
func (a *application) setup(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *application) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// scanDevices runs the bus scan once. The table is usable even when an error is returned.
func (a *application) scanDevices(ctx context.Context) (*DeviceTable, error) {
	scanner := NewScanner(a.cfg.Scanner, a.logger)
	if a.run != nil {
		scanner.run = a.run
	}

	devices, err := scanner.Scan(ctx)
	if err != nil {
		a.logger.Warn("Device scan incomplete", zap.Error(err))
	}
	return devices, err
}

// mediaOrDefault resolves a media key, falling back to the configured media
func (a *application) mediaOrDefault(key string) (MediaType, error) {
	if key == "" {
		key = a.cfg.Burn.Media
	}
	media, ok := GetMediaByKey(key)
	if !ok {
		return MediaType{}, fmt.Errorf("%w: '%s' (use 'burnitnow list-media' to see available media)", ErrUnknownMedia, key)
	}
	return media, nil
}

func createDevicesCmd(a *application) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List optical drives",
		Long:  "Scan the SCSI bus with cdrecord and list the optical drives found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := a.scanDevices(cmd.Context())
			showDevices(cmd.OutOrStdout(), devices, err, a.cfg.Scanner.Command)
			return nil
		},
	}
}

func createBurnCmd(a *application) *cobra.Command {
	var (
		device       int
		speed        int
		session      string
		multiSession bool
		onTheFly     bool
		dummyMode    bool
		eject        bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "burn [image]",
		Short: "Burn an image to disc",
		Long: `Burn an ISO image to the selected optical drive. Use --dry-run to print the
cdrecord command line instead of burning.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := settingsFromConfig(a.cfg.Burn)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("speed") {
				settings.SetSpeed(speed)
			}
			if flags.Changed("session") {
				if settings.Session, err = ParseSessionMode(session); err != nil {
					return err
				}
			}
			settings.MultiSession = multiSession
			settings.OnTheFly = onTheFly
			settings.DummyMode = dummyMode
			settings.EjectAfterBurning = eject

			var image string
			if len(args) > 0 {
				image = args[0]
			}
			if image == "" && !onTheFly {
				return fmt.Errorf("image file is required unless --on-the-fly is set")
			}

			devices, _ := a.scanDevices(cmd.Context())
			if err := devices.Select(device); err != nil && devices.Len() > 0 {
				return err
			}

			return burnDisc(cmd.OutOrStdout(), devices, settings, a.cfg.Scanner.Command, image, dryRun)
		},
	}

	cmd.Flags().IntVarP(&device, "device", "d", 0, "Device slot as listed by 'devices'")
	cmd.Flags().IntVarP(&speed, "speed", "s", MinBurnSpeed, fmt.Sprintf("Burn speed (%d-%d)", MinBurnSpeed, MaxBurnSpeed))
	cmd.Flags().StringVar(&session, "session", "dao", "Session mode: dao or tao")
	cmd.Flags().BoolVar(&multiSession, "multi", false, "Leave the disc open for further sessions")
	cmd.Flags().BoolVar(&onTheFly, "on-the-fly", false, "Read the image from standard input")
	cmd.Flags().BoolVar(&dummyMode, "dummy", false, "Simulate the burn with the laser off")
	cmd.Flags().BoolVar(&eject, "eject", false, "Eject the disc after burning")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the burn command instead of running it")

	return cmd
}

func createBuildImageCmd(a *application) *cobra.Command {
	var mediaKey string

	cmd := &cobra.Command{
		Use:   "build-image <directory>",
		Short: "Build an ISO image from a data compilation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := a.mediaOrDefault(mediaKey)
			if err != nil {
				return err
			}
			return buildImage(cmd.OutOrStdout(), args[0], media)
		},
	}

	cmd.Flags().StringVarP(&mediaKey, "media", "m", "", "Target media (see list-media)")

	return cmd
}

func createListMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-media",
		Short: "List available media types",
		Run: func(cmd *cobra.Command, args []string) {
			listMedia(cmd.OutOrStdout())
		},
	}
}

func createUsageCmd(a *application) *cobra.Command {
	var mediaKey string

	cmd := &cobra.Command{
		Use:   "usage <directory>",
		Short: "Show how much of a disc a data compilation fills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := a.mediaOrDefault(mediaKey)
			if err != nil {
				return err
			}

			used, err := MeasureCompilation(args[0])
			if err != nil {
				return err
			}

			renderUsage(cmd.OutOrStdout(), Usage{Used: used, Capacity: media.Capacity()}, media)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mediaKey, "media", "m", "", "Media to measure against (see list-media)")

	return cmd
}

func createGUICmd(a *application) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Launch the graphical user interface",
		Long:  "Launch the BurnItNow window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGUI(cmd.Context())
		},
	}
}
