package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/leafcheck/internal/config"
	"github.com/Brownie44l1/leafcheck/internal/logger"
	"github.com/Brownie44l1/leafcheck/internal/model"
)

// newClassifyCmd runs the classification pipeline on local files or URLs
// and prints the reply text, without LINE credentials.
func newClassifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <image>...",
		Short: "Classify images from disk or http(s) and print the reply text.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOffline(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			pre, err := providePreprocessor(cfg)
			if err != nil {
				return err
			}
			formatter, err := provideFormatter(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client := resty.New().SetTimeout(cfg.Line.Timeout())
			classifier, err := loadModel(ctx, logger.L, cfg, client)
			if err != nil {
				return err
			}
			defer classifier.Close()

			var failed error
			for _, location := range args {
				prediction, err := classifyOne(ctx, client, pre, classifier, location)
				if err != nil {
					logger.L.Error("classification failed", slog.String("image", location), slog.Any("error", err))
					failed = errors.Join(failed, fmt.Errorf("%s: %w", location, err))
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", location, formatter.Fallback().Text)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", location, formatter.Format(prediction).Text)
			}
			return failed
		},
	}
}

func classifyOne(ctx context.Context, client *resty.Client, pre *model.Preprocessor, classifier *model.Server, location string) (model.Prediction, error) {
	raw, err := model.ReadSource(ctx, client, location)
	if err != nil {
		return model.Prediction{}, err
	}
	tensor, err := pre.Preprocess(raw)
	if err != nil {
		return model.Prediction{}, err
	}
	probs, err := classifier.Predict(ctx, tensor)
	if err != nil {
		return model.Prediction{}, err
	}
	return model.SelectBest(probs, classifier.Labels), nil
}
