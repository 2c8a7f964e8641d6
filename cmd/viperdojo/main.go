// Command viperdojo runs a live negotiation practice session against the
// Viper agent and prints the coaching report when the session ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marbeck/viperdojo/internal/analysis"
	"github.com/marbeck/viperdojo/internal/config"
	"github.com/marbeck/viperdojo/internal/health"
	"github.com/marbeck/viperdojo/internal/observe"
	"github.com/marbeck/viperdojo/internal/recorder"
	"github.com/marbeck/viperdojo/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "viperdojo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "viperdojo: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("viperdojo starting",
		"config", *configPath,
		"model", cfg.Agent.Model,
		"log_level", cfg.Server.LogLevel,
	)

	// The live session and the analysis call both need the credential; bail
	// out now rather than failing mid-handshake.
	if cfg.Agent.APIKey == "" {
		fmt.Fprintln(os.Stderr, "viperdojo: no API key — set agent.api_key or GEMINI_API_KEY")
		return 1
	}

	// Recording artifacts and the session store land here.
	if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
		slog.Error("failed to create recording directory", "dir", cfg.Recording.Dir, "err", err)
		return 1
	}
	if dir := filepath.Dir(cfg.Recording.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create store directory", "dir", dir, "err", err)
			return 1
		}
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "viperdojo"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	if cfg.Server.MetricsAddr != "" {
		srv := startMetricsServer(cfg, metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	// Only the log level can change mid-session; everything else is noted for
	// the next run.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.RestartNeeded {
			slog.Warn("config change requires a restart to take effect")
		} else if diff.DeltasChanged || diff.SalienceChanged || diff.SilenceChanged || diff.ThresholdsChanged {
			slog.Info("game tunables changed, applied on next session")
		}
	})
	if err != nil {
		slog.Error("failed to watch config", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	// ── Session ───────────────────────────────────────────────────────────────
	orch := session.New(cfg, metrics)

	slog.Info("session starting — press Ctrl+C to end early")
	sum, err := orch.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session error", "err", err)
		return 1
	}
	if sum == nil {
		slog.Info("no session to report, goodbye")
		return 0
	}

	printSessionSummary(sum)

	// ── Persistence ───────────────────────────────────────────────────────────
	// The process is going away; persistence gets its own deadline.
	persistCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := persistSummary(persistCtx, cfg, sum); err != nil {
		slog.Error("failed to persist session", "err", err)
		return 1
	}

	// ── Coaching report ───────────────────────────────────────────────────────
	if cfg.Analysis.Enabled {
		if err := runAnalysis(persistCtx, cfg, metrics, sum); err != nil {
			// The session itself succeeded and is persisted; a failed
			// coaching call is not worth a non-zero exit.
			slog.Warn("coaching analysis failed", "err", err)
		}
	}

	slog.Info("goodbye")
	return 0
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func startMetricsServer(cfg *config.Config, m *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(
		health.Binary("ffmpeg", cfg.Capture.FFmpegPath),
		health.Binary("ffplay", cfg.Playback.FFplayPath),
		health.Dir("recordings", cfg.Recording.Dir),
	).Register(mux)

	addr := cfg.Server.MetricsAddr
	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server error", "err", err)
		}
	}()
	return srv
}

// ── Persistence ───────────────────────────────────────────────────────────────

// persistSummary saves the summary to the session store and writes the
// compressed timeline archive next to the recording artifact.
func persistSummary(ctx context.Context, cfg *config.Config, sum *recorder.Summary) error {
	store, err := recorder.OpenStore(ctx, cfg.Recording.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveSummary(ctx, sum)
	if err != nil {
		return err
	}
	slog.Info("session saved", "id", id, "store", cfg.Recording.StorePath)

	if err := recorder.WriteArchive(archivePath(cfg, sum), sum); err != nil {
		return err
	}
	return nil
}

// archivePath places the timeline archive next to the recording artifact,
// swapping the container extension for .zst. Sessions that never produced an
// artifact (camera-only failures, very early aborts) fall back to a
// timestamped name in the recording directory.
func archivePath(cfg *config.Config, sum *recorder.Summary) string {
	if sum.ArtifactPath != "" {
		return strings.TrimSuffix(sum.ArtifactPath, filepath.Ext(sum.ArtifactPath)) + ".zst"
	}
	return filepath.Join(cfg.Recording.Dir, "session-"+sum.StartedAt.Format("20060102-150405")+".zst")
}

// ── Coaching report ───────────────────────────────────────────────────────────

func runAnalysis(ctx context.Context, cfg *config.Config, m *observe.Metrics, sum *recorder.Summary) error {
	ctx, span := observe.StartSpan(ctx, "analysis.report")
	defer span.End()

	coach, err := analysis.NewCoach(cfg.Analysis.Model, anyllmlib.WithAPIKey(cfg.Agent.APIKey))
	if err != nil {
		return err
	}

	analysisCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	report, err := coach.Analyze(analysisCtx, sum)
	m.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printReport(r *analysis.Report) {
	fmt.Println()
	fmt.Println("── Coaching report ──────────────────────────────")
	fmt.Println(r.OverallAssessment)
	printList("Strengths", r.StrengthsIdentified)
	printList("Areas to improve", r.AreasForImprovement)
	fmt.Println()
	fmt.Println("Tactical breakdown:")
	fmt.Printf("  Anchoring        %s\n", r.TacticalBreakdown.Anchoring)
	fmt.Printf("  Silence usage    %s\n", r.TacticalBreakdown.SilenceUsage)
	fmt.Printf("  Body language    %s\n", r.TacticalBreakdown.BodyLanguage)
	fmt.Printf("  Vocal confidence %s\n", r.TacticalBreakdown.VocalConfidence)
	printList("Tips", r.PersonalizedTips)
	if r.NextScenarioRecommendation != "" {
		fmt.Printf("\nNext scenario: %s\n", r.NextScenarioRecommendation)
	}
	fmt.Printf("\nScores: overall %d | confidence %d | strategy %d | composure %d\n",
		r.Score.Overall, r.Score.Confidence, r.Score.Strategy, r.Score.Composure)
	if r.CoachingScript != "" {
		fmt.Printf("\nCoach says: %s\n", r.CoachingScript)
	}
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, it := range items {
		fmt.Printf("  - %s\n", it)
	}
}

// ── Summaries ─────────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Viper Dojo — session setup      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Model", cfg.Agent.Model)
	printField("Voice", cfg.Agent.Voice)
	printField("Mic", cfg.Capture.AudioDevice)
	printField("Camera", cfg.Capture.VideoDevice)
	printField("Recordings", cfg.Recording.Dir)
	if cfg.Analysis.Enabled {
		printField("Analysis", cfg.Analysis.Model)
	} else {
		printField("Analysis", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		printField("Metrics", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printSessionSummary(sum *recorder.Summary) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      Viper Dojo — session result      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Outcome", string(sum.Outcome))
	printField("Duration", sum.Duration.Round(time.Second).String())
	printField("Rounds", fmt.Sprintf("%d", sum.Rounds))
	printField("Confidence", fmt.Sprintf("%d", sum.EndingConfidence))
	printField("Patience", fmt.Sprintf("%d", sum.EndingPatience))
	printField("Key moments", fmt.Sprintf("%d", len(sum.Moments)))
	if sum.ArtifactPath != "" {
		printField("Recording", sum.ArtifactPath)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(not set)"
	}
	if len([]rune(value)) > 19 {
		r := []rune(value)
		value = string(r[:16]) + "…"
	}
	fmt.Printf("║  %-14s : %-19s ║\n", name, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
