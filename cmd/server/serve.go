package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Brownie44l1/leafcheck/internal/config"
	"github.com/Brownie44l1/leafcheck/internal/handlers"
	"github.com/Brownie44l1/leafcheck/internal/line"
	"github.com/Brownie44l1/leafcheck/internal/logger"
	"github.com/Brownie44l1/leafcheck/internal/model"
	"github.com/Brownie44l1/leafcheck/internal/pipeline"
	"github.com/Brownie44l1/leafcheck/internal/reply"
	"github.com/Brownie44l1/leafcheck/internal/server"
)

type configPath string

// runServe blocks until the process is signalled. The model is loaded while
// the graph is built, so the listener only opens once it is ready.
func runServe(path string) {
	fx.New(
		fx.Supply(configPath(path)),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideHTTPClient,
			provideModel,
			providePreprocessor,
			provideFormatter,
			provideLineClient,
			provideDispatcher,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(providePredictHandler),
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideHTTPClient(cfg config.Config) *resty.Client {
	return resty.New().SetTimeout(cfg.Line.Timeout())
}

func provideModel(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, client *resty.Client) (*model.Server, error) {
	srv, err := loadModel(context.Background(), log, cfg, client)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			srv.Close()
			return nil
		},
	})
	return srv, nil
}

func loadModel(ctx context.Context, log *slog.Logger, cfg config.Config, client *resty.Client) (*model.Server, error) {
	return model.NewServer(ctx, model.Options{
		Location:         cfg.Model.Location,
		MetadataLocation: cfg.Model.MetadataLocation,
		Labels:           cfg.Pipeline.Labels,
		RuntimeLibrary:   cfg.Model.RuntimeLibrary,
		InputName:        cfg.Model.InputName,
		OutputName:       cfg.Model.OutputName,
		HTTPClient:       client,
		Logger:           log,
	})
}

func providePreprocessor(cfg config.Config) (*model.Preprocessor, error) {
	norm, err := model.ParseNormalization(cfg.Pipeline.Normalization)
	if err != nil {
		return nil, err
	}
	return model.NewPreprocessor(norm), nil
}

func provideFormatter(cfg config.Config) (*reply.Formatter, error) {
	style, err := reply.ParseStyle(cfg.Pipeline.ReplyStyle)
	if err != nil {
		return nil, err
	}
	return reply.NewFormatter(reply.Options{
		Style:        style,
		FallbackText: cfg.Pipeline.FallbackText,
		CardTitle:    cfg.Pipeline.CardTitle,
		CardBrand:    cfg.Pipeline.CardBrand,
		CardFooter:   cfg.Pipeline.CardFooter,
	}), nil
}

func provideLineClient(log *slog.Logger, cfg config.Config) *line.Client {
	return line.NewClient(log, line.Config{
		ChannelAccessToken: cfg.Line.ChannelAccessToken,
		APIBaseURL:         cfg.Line.APIBaseURL,
		DataBaseURL:        cfg.Line.DataBaseURL,
		MaxContentBytes:    cfg.Line.MaxContentBytes,
		Timeout:            cfg.Line.Timeout(),
	})
}

func provideDispatcher(log *slog.Logger, client *line.Client, pre *model.Preprocessor, classifier *model.Server, formatter *reply.Formatter) *pipeline.Dispatcher {
	return pipeline.NewDispatcher(log, pipeline.Config{
		Fetcher:      client,
		Preprocessor: pre,
		Classifier:   classifier,
		Labels:       classifier.Labels,
		Formatter:    formatter,
		Messenger:    client,
	})
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher *pipeline.Dispatcher) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, dispatcher, cfg.Server.WebhookPath, cfg.Line.ChannelSecret)
}

func providePredictHandler(log *slog.Logger, classifier *model.Server, pre *model.Preprocessor) *handlers.Handler {
	return handlers.NewHandler(log, classifier, pre, classifier.Labels)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, classifier *model.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("server listening",
				slog.String("addr", cfg.Server.Addr),
				slog.String("webhook", cfg.Server.WebhookPath),
				slog.String("model", classifier.Location()),
				slog.Int("labels", len(classifier.Labels)),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
