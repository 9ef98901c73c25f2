// Package main provides the playlistgen CLI entry point: a thin wrapper that reads a program,
// constructs the in-scope resolution/assembly components, and hands them a program string and an
// output sink. Argument parsing beyond that, interactive prompting, and credential acquisition UX
// are the out-of-scope CLI collaborator named in spec.md §1.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"playlistgen/internal/lastfm"
	"playlistgen/internal/parser"
	"playlistgen/internal/playlist"
	"playlistgen/internal/render"
	"playlistgen/internal/resolve"
)

var (
	cfgFile string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "playlistgen",
	Short: "playlistgen - batch playlist generator",
	Long: `playlistgen reads a small declarative text program describing desired music content and
produces a deterministic list of Spotify track URIs suitable for pasting into a playlist client.`,
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringP("input", "i", "", "path to the input program (default: stdin)")
	rootCmd.Flags().StringP("output", "o", "", "path to write the rendered playlist (default: stdout)")
	rootCmd.Flags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.Flags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.Flags().String("spotify-redirect-url", "http://127.0.0.1:8080/callback", "Spotify OAuth redirect URL")
	rootCmd.Flags().String("spotify-token-path", "./spotify_token.json", "path to the persisted Spotify OAuth token")
	rootCmd.Flags().String("lastfm-api-key", "", "Last.fm API key, required only for #ORDER BY LASTFM")
	rootCmd.Flags().String("metrics-addr", "", "if set, expose Prometheus metrics on this address (e.g. :9090) for the duration of the run")
	rootCmd.Flags().String("order-by", "", "override the program's ordering directive (popularity, lastfm)")
	rootCmd.Flags().String("group-by", "", "override the program's grouping directive (entry, artist, album)")

	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind flags: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind persistent flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}
	if err := gotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error loading .env file: %v\n", err)
	}

	viper.SetEnvPrefix("PLAYLISTGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	logger = buildLogger(viper.GetString("log-level"))
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	// The rendered playlist is the program's only stdout contract (§6); diagnostics go to stderr.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	built, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return built
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling in-flight resolution")
		cancel()
	}()

	defer func() { _ = logger.Sync() }()

	var registry *prometheus.Registry
	if addr := viper.GetString("metrics-addr"); addr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(prometheus.NewGoCollector())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server exited", zap.Error(err))
			}
		}()
		defer func() { _ = server.Close() }()
	}

	program, err := readProgram(viper.GetString("input"))
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}

	pl := parser.Parse(program)
	applyOverrides(pl)

	gw := resolve.NewGateway(resolve.Config{
		ClientID:     viper.GetString("spotify-client-id"),
		ClientSecret: viper.GetString("spotify-client-secret"),
		RedirectURL:  viper.GetString("spotify-redirect-url"),
		TokenPath:    viper.GetString("spotify-token-path"),
	}, logger, registry)

	if err := gw.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate with spotify: %w", err)
	}

	annotator := lastfm.New(viper.GetString("lastfm-api-key"), logger)

	tracks := pl.Dispatch(ctx, gw, annotator, logger)
	output := render.Render(tracks)

	return writeOutput(viper.GetString("output"), output)
}

func readProgram(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit, user-supplied CLI flag
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeOutput(path, content string) error {
	if path == "" {
		_, err := fmt.Println(content)
		return err
	}
	return os.WriteFile(path, []byte(content+"\n"), 0o644) // #nosec G306 -- playlist text, not sensitive
}

// applyOverrides lets --order-by/--group-by override the program text's directives, per
// SPEC_FULL.md's "Config-file + flag + env precedence" supplement.
func applyOverrides(pl *playlist.Playlist) {
	switch strings.ToLower(viper.GetString("order-by")) {
	case "popularity":
		pl.Ordering = playlist.OrderPopularity
	case "lastfm":
		pl.Ordering = playlist.OrderLastFM
	}
	switch strings.ToLower(viper.GetString("group-by")) {
	case "entry":
		pl.Grouping = playlist.GroupEntry
	case "artist":
		pl.Grouping = playlist.GroupArtist
	case "album":
		pl.Grouping = playlist.GroupAlbum
	}
}
