package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"galemind/internal/buffer"
	"galemind/internal/common/fsutil"
	"galemind/internal/config"
	"galemind/internal/grpcapi"
	"galemind/internal/httpapi"
	"galemind/internal/manager"
	"galemind/internal/protocol"
	"galemind/internal/registry"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "galemind",
		Short:         "GaleMind ML inference server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildStartCmd())
	return root
}

func buildStartCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the REST and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			return runStart(cmd.Context(), cfg, logLevel)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "Optional config file (.yaml, .json or .toml); flags override it")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	f.String("rest-host", "0.0.0.0", "REST server host")
	f.Int("rest-port", 8080, "REST server port")
	f.String("grpc-host", "0.0.0.0", "gRPC server host")
	f.Int("grpc-port", 50051, "gRPC server port")
	f.String("models-dir", "", "Directory to scan for models (defaults MODELS_DIR)")
	f.Int("buffer-capacity", 32, "Per-model request buffer capacity")
	f.String("overflow-policy", "block", "Admission on full buffer: block|reject")
	f.Int("push-timeout-ms", 30000, "How long a blocked push may wait for a slot")
	f.Int("max-batch-size", 8, "Maximum requests drained per batch")
	f.Int("max-batch-wait-ms", 50, "Maximum age of the oldest queued request before a partial batch forms")
	f.Int("stream-idle-timeout-ms", 60000, "Evict chunked streams idle for this long (0 disables)")
	f.Bool("strict-chunk-order", false, "Reject out-of-order stream chunks instead of buffering them")
	f.Int("drain-timeout-ms", 5000, "Unload drain budget before queued requests are aborted")
	return cmd
}

// resolveConfig layers the optional config file under the flag values.
// A flag changed on the command line always wins.
func resolveConfig(cmd *cobra.Command, cfgPath string) (config.Config, error) {
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	restHost, _ := f.GetString("rest-host")
	restPort, _ := f.GetInt("rest-port")
	grpcHost, _ := f.GetString("grpc-host")
	grpcPort, _ := f.GetInt("grpc-port")
	if cfg.RESTAddr == "" || f.Changed("rest-host") || f.Changed("rest-port") {
		cfg.RESTAddr = net.JoinHostPort(restHost, fmt.Sprint(restPort))
	}
	if cfg.GRPCAddr == "" || f.Changed("grpc-host") || f.Changed("grpc-port") {
		cfg.GRPCAddr = net.JoinHostPort(grpcHost, fmt.Sprint(grpcPort))
	}

	if v, _ := f.GetString("models-dir"); v != "" {
		cfg.ModelsDir = v
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = os.Getenv("MODELS_DIR")
	}
	if cfg.ModelsDir == "" {
		return cfg, fmt.Errorf("models dir is required: set --models-dir or MODELS_DIR")
	}

	if v, _ := f.GetInt("buffer-capacity"); f.Changed("buffer-capacity") || cfg.BufferCapacity == 0 {
		cfg.BufferCapacity = v
	}
	if v, _ := f.GetString("overflow-policy"); f.Changed("overflow-policy") || cfg.OverflowPolicy == "" {
		cfg.OverflowPolicy = v
	}
	if v, _ := f.GetInt("push-timeout-ms"); f.Changed("push-timeout-ms") || cfg.PushTimeoutMS == 0 {
		cfg.PushTimeoutMS = v
	}
	if v, _ := f.GetInt("max-batch-size"); f.Changed("max-batch-size") || cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = v
	}
	if v, _ := f.GetInt("max-batch-wait-ms"); f.Changed("max-batch-wait-ms") || cfg.MaxBatchWaitMS == 0 {
		cfg.MaxBatchWaitMS = v
	}
	if v, _ := f.GetInt("stream-idle-timeout-ms"); f.Changed("stream-idle-timeout-ms") || cfg.StreamIdleTimeoutMS == 0 {
		cfg.StreamIdleTimeoutMS = v
	}
	if v, _ := f.GetBool("strict-chunk-order"); f.Changed("strict-chunk-order") {
		cfg.StrictChunkOrder = v
	}
	if v, _ := f.GetInt("drain-timeout-ms"); f.Changed("drain-timeout-ms") || cfg.DrainTimeoutMS == 0 {
		cfg.DrainTimeoutMS = v
	}
	return cfg, nil
}

func runStart(ctx context.Context, cfg config.Config, logLevel string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	httpapi.SetLogger(logger)

	policy := buffer.PolicyBlock
	if cfg.OverflowPolicy == "reject" {
		policy = buffer.PolicyRejectFast
	}

	mgr := manager.New(manager.Config{
		Runtime:        manager.EchoRuntime{},
		Logger:         logger,
		BufferCapacity: cfg.BufferCapacity,
		OverflowPolicy: policy,
		PushTimeout:    cfg.PushTimeout(),
		MaxBatchSize:   cfg.MaxBatchSize,
		MaxBatchWait:   cfg.MaxBatchWait(),
		DrainTimeout:   cfg.DrainTimeout(),
	})
	defer mgr.Close()

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return err
	}
	if !fsutil.PathExists(modelsDir) {
		return fmt.Errorf("models dir does not exist: %s", modelsDir)
	}
	entries, err := registry.ScanDir(modelsDir)
	if err != nil {
		return fmt.Errorf("scan models dir: %w", err)
	}
	if len(entries) == 0 {
		logger.Warn().Str("dir", cfg.ModelsDir).Msg("no models found")
	}
	for _, e := range entries {
		if err := mgr.Register(ctx, e.Name, e.Version, cfg.BufferCapacity); err != nil {
			return fmt.Errorf("register model %s: %w", e.Name, err)
		}
	}

	baseCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetDefaultModel(cfg.DefaultModel)

	reassembler := protocol.NewReassembler(protocol.ReassemblerConfig{
		Strict:      cfg.StrictChunkOrder,
		IdleTimeout: cfg.StreamIdleTimeout(),
		Logger:      logger,
	})
	reassembler.StartJanitor(baseCtx)

	restSrv := &http.Server{Addr: cfg.RESTAddr, Handler: httpapi.NewMux(mgr)}
	grpcSrv := grpc.NewServer(grpc.ForceServerCodec(grpcapi.JSONCodec{}))
	grpcapi.RegisterPredictionServer(grpcSrv, grpcapi.NewServer(mgr, reassembler, logger))

	g, gctx := errgroup.WithContext(baseCtx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.RESTAddr).Msg("REST server listening")
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("rest server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := restSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("rest shutdown")
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
