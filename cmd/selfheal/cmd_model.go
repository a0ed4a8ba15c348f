package main

import (
	"fmt"

	"selfheal/internal/embedding"
	"selfheal/internal/predictor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// modelCmd groups model lifecycle commands
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Train and query the locator model",
}

var modelTrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build the neighbour model artifact from the training corpus",
	Args:  cobra.NoArgs,
	RunE:  modelTrain,
}

var modelPredictCmd = &cobra.Command{
	Use:   "predict [locator]",
	Short: "Ask the model for a replacement locator",
	Args:  cobra.ExactArgs(1),
	RunE:  modelPredict,
}

func init() {
	modelCmd.AddCommand(modelTrainCmd)
	modelCmd.AddCommand(modelPredictCmd)
}

func modelTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	corpus, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()

	records, err := corpus.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load training corpus: %w", err)
	}

	codec, err := embedding.NewCodec(cfg.Predictor.Codec, cfg.Predictor.Width)
	if err != nil {
		return err
	}
	artifact := predictor.Train(records, codec, cfg.Predictor.MinSimilarity)
	if err := predictor.SaveArtifact(cfg.Predictor.ModelPath, artifact); err != nil {
		return err
	}

	logger.Info("Model trained",
		zap.String("path", cfg.Predictor.ModelPath),
		zap.Int("records", len(records)),
		zap.Int("entries", len(artifact.Entries)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d pairings from %d records -> %s\n",
		successStyle.Render("trained"), len(artifact.Entries), len(records), cfg.Predictor.ModelPath)
	return nil
}

func modelPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	pred, corpus, err := openPredictor(ctx)
	if err != nil {
		return err
	}
	defer corpus.Close()
	defer pred.Close()

	if err := pred.Load(ctx); err != nil {
		return err
	}
	healed, err := pred.Predict(ctx, args[0])
	if err != nil {
		return err
	}
	if healed == "" {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no prediction"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), healed)
	return nil
}
