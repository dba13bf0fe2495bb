package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/izahai/SceneFit/internal/audio"
	"github.com/izahai/SceneFit/internal/capture"
	"github.com/izahai/SceneFit/internal/config"
	"github.com/izahai/SceneFit/internal/console"
	"github.com/izahai/SceneFit/internal/metrics"
	"github.com/izahai/SceneFit/internal/server"
	"github.com/izahai/SceneFit/internal/session"
	"github.com/izahai/SceneFit/internal/transcription"
)

const (
	serviceName    = "voice-transcriber"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults are used when empty)")
	envPath := flag.String("env", ".env", "Path to a .env file with environment overrides")
	wavPath := flag.String("file", "", "Transcribe a WAV file instead of recording from the microphone")
	listDevices := flag.Bool("list-devices", false, "List audio input devices and exit")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *listDevices {
		if err := printDevices(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, closeLog := initLogger(cfg.Logging)
	defer closeLog()

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	sanitized := cfg.Sanitized()
	logger.Info("Configuration loaded",
		slog.String("device", cfg.Capture.Device),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("max_record_seconds", cfg.Capture.MaxRecordSeconds),
		slog.String("transcription_url", sanitized.Transcription.URL),
		slog.Duration("transcription_timeout", cfg.Transcription.GetTimeoutDuration()),
		slog.Bool("http_enabled", cfg.HTTP.Enabled),
		slog.Bool("console_enabled", cfg.Console.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.NewMetrics(nil)

	transcriber, err := transcription.NewClient(transcription.Config{
		URL:         cfg.Transcription.URL,
		Timeout:     cfg.Transcription.GetTimeoutDuration(),
		LogRequests: cfg.Transcription.LogRequests,
		UserAgent:   cfg.Transcription.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessionConfig := session.Config{
		Capture: capture.Options{
			Device:             cfg.Capture.Device,
			SampleRate:         cfg.Capture.SampleRate,
			MaxDurationSeconds: cfg.Capture.MaxRecordSeconds,
			Channels:           cfg.Capture.Channels,
			FramesPerBuffer:    cfg.Capture.FramesPerBuffer,
		},
		SubmitTimeout:     cfg.Transcription.GetTimeoutDuration(),
		KeepRecordingsDir: cfg.Capture.KeepRecordingsDir,
	}

	if *wavPath != "" {
		client := session.NewClient(logger, sessionConfig, nil, transcriber, appMetrics)
		err := transcribeFile(ctx, logger, client, *wavPath, os.Stdout)
		client.Close()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, logger, cfg, sessionConfig, transcriber, appMetrics); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

// run records from the microphone, driven by the console and/or the HTTP API, until ctx is done or the console quits
func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, sessionConfig session.Config,
	transcriber *transcription.Client, appMetrics *metrics.Metrics) error {

	if !cfg.Console.Enabled && !cfg.HTTP.Enabled {
		return errors.New("nothing to drive recordings: enable the console or the HTTP API")
	}

	backend, err := capture.NewPortAudioBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	recorder := capture.NewRecorder(backend, logger)
	defer recorder.Close()

	client := session.NewClient(logger, sessionConfig, recorder, transcriber, appMetrics)
	defer client.Close()

	client.Subscribe(session.ListenerFuncs{
		OnTranscript: func(text string) {
			logger.Info("Transcript received", slog.Int("length", len(text)))
		},
		OnError: func(err *transcription.Error) {
			logger.Warn("Transcription cycle failed",
				slog.String("kind", string(err.Kind)),
				slog.String("error", err.Error()))
		},
	})

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(server.HTTPServerConfig{
			Port:         cfg.HTTP.Port,
			Address:      cfg.HTTP.Address,
			WriteTimeout: cfg.Transcription.GetTimeoutDuration() + 10*time.Second,
		}, logger, cfg, client, transcriber, appMetrics)

		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		logger.Info("HTTP API server started", slog.String("address", httpServer.Addr()))

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
			}
		}()
	}

	if cfg.Console.Enabled {
		display := console.NewDisplay(logger, console.Options{
			ClearOnStart:      cfg.Console.ClearOnStart,
			AppendWithNewline: cfg.Console.AppendWithNewline,
			CopyToClipboard:   cfg.Console.CopyToClipboard,
			StartLabel:        cfg.Console.StartLabel,
			StopLabel:         cfg.Console.StopLabel,
		}, client, os.Stdout)
		unsubscribe := client.Subscribe(display)
		defer unsubscribe()

		err := display.Run(ctx, os.Stdin)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("console failed: %w", err)
		}
	} else {
		logger.Info("Waiting for signals...")
		<-ctx.Done()
	}

	logger.Info("Starting graceful shutdown...")

	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Duration("avg_response_time", stats.AvgResponseTime),
	)

	return nil
}

// transcribeFile submits a WAV file from disk and prints the transcript to out
func transcribeFile(ctx context.Context, logger *slog.Logger, client *session.Client, path string, out io.Writer) error {
	samples, err := audio.LoadWAVFile(path)
	if err != nil {
		logger.Error("Failed to load audio file", slog.String("path", path), slog.String("error", err.Error()))
		return err
	}

	logger.Info("Submitting audio file",
		slog.String("path", path),
		slog.Int("channels", samples.Channels),
		slog.Int("sample_rate", samples.SampleRate),
		slog.Duration("duration", samples.Duration()),
	)

	res := <-client.Submit(ctx, samples)
	if res.Err != nil {
		logger.Error("Transcription failed", slog.String("error", res.Err.Error()))
		return res.Err
	}

	fmt.Fprintln(out, res.Text)
	return nil
}

func printDevices(out io.Writer) error {
	backend, err := capture.NewPortAudioBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	devices, err := backend.ListInputDevices()
	if err != nil {
		return err
	}

	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s (%s, %d ch, %.0f Hz)\n",
			marker, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

// initLogger creates and configures the structured logger based on configuration.
// The returned func closes the log file, if any.
func initLogger(cfg config.LoggingConfig) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// stdout carries the console display, so logs default to stderr
	var output io.Writer
	closer := func() {}
	switch {
	case cfg.Output == "stdout":
		output = os.Stdout
	case !cfg.IsFile():
		output = os.Stderr
	default:
		rotator := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		output = rotator
		closer = func() { rotator.Close() }
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), closer
}
