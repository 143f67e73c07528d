package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Veraticus/motorsense/internal/cli"
	"github.com/Veraticus/motorsense/internal/config"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Classify live samples from MQTT",
		Long: `Subscribe to accelerometer samples on an MQTT topic and classify them live.

Samples ({"ax":..,"ay":..,"az":..} or arrays of them) are collected into
recordings of stream.recording_samples samples. Each recording is classified
and its verdict is published as JSON to mqtt.verdict_topic.

Examples:
  motorsense watch
  MOTORSENSE_MQTT_BROKER=tcp://pi.local:1883 motorsense watch --store`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().String("broker", "", "MQTT broker URL (overrides mqtt.broker)")
	cmd.Flags().Bool("store", false, "Save live verdicts to the history database")

	_ = viper.BindPFlag("mqtt.broker", cmd.Flags().Lookup("broker"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()
	store, _ := cmd.Flags().GetBool("store")

	streamCfg, err := config.LoadStreamConfig(v)
	if err != nil {
		return err
	}

	p, cfg, err := buildPipeline(v)
	if err != nil {
		return err
	}

	if store {
		db, err := initStorage(ctx, v)
		if err != nil {
			return err
		}
		defer closeStorage(db)

		run, err := startRun(ctx, db, v, "watch", cfg)
		if err != nil {
			return err
		}
		streamCfg.Watcher.OnVerdict = func(result *pipeline.Result) {
			if err := db.SaveVerdict(ctx, storedVerdict(run.ID, result)); err != nil {
				slog.Error("Failed to save live verdict", "recording", result.Recording, "error", err)
			}
		}
		slog.Info("Saving live verdicts", "run_id", run.ID)
	}

	client, err := stream.Connect(streamCfg.MQTT)
	if err != nil {
		return err
	}
	defer client.Close()

	watcher, err := stream.NewWatcher(p, client, streamCfg.Watcher)
	if err != nil {
		return err
	}
	if err := client.Subscribe(streamCfg.SampleTopic, watcher.HandlePayload); err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.OutOrStdout())
	ctx = interrupts.HandleInterrupts(ctx, "")

	slog.Info("Watching for samples",
		"broker", streamCfg.MQTT.Broker,
		"topic", streamCfg.SampleTopic,
		"recording_samples", streamCfg.Watcher.RecordingSamples)

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
