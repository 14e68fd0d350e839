package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/renderlab/pkg/config"
	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
	"github.com/ethpandaops/renderlab/pkg/scheduler"
	"github.com/ethpandaops/renderlab/pkg/session"
	"github.com/ethpandaops/renderlab/pkg/simulate"
)

var (
	simScenario   string
	simFrames     int
	simFPS        float64
	simComponents int
	simSeed       uint64
	simLive       bool
	simOutput     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a scenario and print the metrics panel",
	Long: `Drive synthetic frames of a scenario through the metrics pipeline on a
cooperative task loop. Flags override the simulate section of the config.
With --live the panel is redrawn while frames run.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simScenario, "scenario", config.DefaultScenario,
		"scenario to simulate (see 'renderlab scenarios')")
	simulateCmd.Flags().IntVar(&simFrames, "frames", config.DefaultFrames,
		"number of frames, 0 runs until interrupted")
	simulateCmd.Flags().Float64Var(&simFPS, "fps", config.DefaultFramesPerSecond,
		"frames per second, 0 runs unpaced")
	simulateCmd.Flags().IntVar(&simComponents, "components", config.DefaultComponents,
		"number of child components")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1,
		"seed for simulated commit durations")
	simulateCmd.Flags().BoolVar(&simLive, "live", false,
		"redraw the panel every panel.refresh_interval while running")
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", outputText,
		"final output format (text, json, yaml)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := validateOutput(simOutput); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	applySimulateFlags(cmd, &cfg.Simulate)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	refresh, err := cfg.Panel.Refresh()
	if err != nil {
		return err
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Stopping simulation")
			cancel()
		case <-ctx.Done():
		}
	}()

	loop := scheduler.NewLoop(log)
	if err := loop.Start(context.Background()); err != nil {
		return fmt.Errorf("starting loop: %w", err)
	}

	defer func() {
		if err := loop.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop loop")
		}
	}()

	labeler := format.NewLabeler()
	sess := session.New(log, session.Config{
		Store:   metrics.Options{CommitCapacity: cfg.Store.CommitCapacity},
		Labeler: labeler,
	}, loop)
	defer sess.Close()

	driver, err := simulate.New(log, sess, loop, simulate.Config{
		Scenario:        event.ScenarioID(cfg.Simulate.Scenario),
		Frames:          cfg.Simulate.Frames,
		FramesPerSecond: cfg.Simulate.FramesPerSecond,
		Components:      cfg.Simulate.Components,
		Seed:            simSeed,
	})
	if err != nil {
		return fmt.Errorf("creating driver: %w", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stopWatch()

		frames, err := driver.Run(gCtx)
		if err != nil {
			return fmt.Errorf("running simulation: %w", err)
		}

		log.WithFields(logrus.Fields{
			"scenario": cfg.Simulate.Scenario,
			"frames":   frames,
		}).Debug("Driver finished")

		return nil
	})

	if simLive {
		p := newPanel(os.Stdout, cfg, labeler)

		g.Go(func() error {
			return p.Watch(watchCtx, sess.Store(), refresh)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if simLive && simOutput == outputText {
		return nil
	}

	return writeSnapshot(os.Stdout, simOutput, cfg, sess.Store().Snapshot(), labeler)
}

// applySimulateFlags copies explicitly set flags over the config values.
func applySimulateFlags(cmd *cobra.Command, sim *config.SimulateConfig) {
	flags := cmd.Flags()

	if flags.Changed("scenario") {
		sim.Scenario = simScenario
	}

	if flags.Changed("frames") {
		sim.Frames = simFrames
	}

	if flags.Changed("fps") {
		sim.FramesPerSecond = simFPS
	}

	if flags.Changed("components") {
		sim.Components = simComponents
	}
}
