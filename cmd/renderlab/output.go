package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/renderlab/pkg/config"
	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
	"github.com/ethpandaops/renderlab/pkg/panel"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(output string) error {
	switch output {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (text, json, yaml)", output)
	}
}

func newPanel(w io.Writer, cfg *config.Config, labeler *format.Labeler) *panel.Panel {
	return panel.New(log, w, panel.Options{
		MaxDiffs:    cfg.Panel.MaxDiffs,
		ShowProcess: cfg.Panel.ShowProcess,
		Color:       useColor(cfg),
		Labeler:     labeler,
	})
}

func writeSnapshot(
	w io.Writer,
	output string,
	cfg *config.Config,
	snap metrics.Snapshot,
	labeler *format.Labeler,
) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(panel.NewReport(snap, labeler)); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(panel.NewReport(snap, labeler)); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("closing yaml encoder: %w", err)
		}
	default:
		return newPanel(w, cfg, labeler).Render(snap)
	}

	return nil
}
