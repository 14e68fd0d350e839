package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
	"github.com/ethpandaops/renderlab/pkg/scheduler"
	"github.com/ethpandaops/renderlab/pkg/session"
	"github.com/ethpandaops/renderlab/pkg/trace"
)

var replayOutput string

var replayCmd = &cobra.Command{
	Use:   "replay <trace>",
	Short: "Replay a recorded trace and print the metrics panel",
	Long: `Replay a YAML or JSON trace of select, render, commit, observe, unmount,
tick and reset events against a fresh session, then print the resulting
metrics for the last selected scenario.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", outputText,
		"output format (text, json, yaml)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := validateOutput(replayOutput); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tr, err := trace.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading trace: %w", err)
	}

	log.WithFields(logrus.Fields{
		"trace":   args[0],
		"name":    tr.Name,
		"entries": len(tr.Entries),
	}).Info("Replaying trace")

	labeler := format.NewLabeler()
	sched := scheduler.NewManual()

	sess := session.New(log, session.Config{
		Store:   metrics.Options{CommitCapacity: cfg.Store.CommitCapacity},
		Labeler: labeler,
	}, sched)
	defer sess.Close()

	if err := tr.Replay(sess, sched); err != nil {
		return fmt.Errorf("replaying trace: %w", err)
	}

	return writeSnapshot(os.Stdout, replayOutput, cfg, sess.Store().Snapshot(), labeler)
}
