package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/memoria/ai/embedding"
	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/internal/version"
	"github.com/hrygo/memoria/memory/buffer"
	"github.com/hrygo/memoria/memory/flush"
	"github.com/hrygo/memoria/memory/lock"
	"github.com/hrygo/memoria/memory/recall"
	"github.com/hrygo/memoria/server"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/store/cache"
	"github.com/hrygo/memoria/store/db/postgres"
	"github.com/hrygo/memoria/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "memoria",
	Short: `A memory backend for conversational AI: ingests chats, distills long-term user profiles and events, and serves them back as prompt-ready context.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Only load .env for direct binary execution; a systemd unit
		// carries its environment in the service file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := profile.Default()
		instanceProfile.Mode = viper.GetString("mode")
		instanceProfile.Addr = viper.GetString("addr")
		instanceProfile.Port = viper.GetInt("port")
		instanceProfile.Instance = viper.GetString("instance")
		instanceProfile.DSN = viper.GetString("dsn")
		instanceProfile.RedisURL = viper.GetString("redis-url")
		instanceProfile.Version = version.GetCurrentVersion(viper.GetString("mode"))
		if err := instanceProfile.LoadConfigFile(viper.GetString("config")); err != nil {
			slog.Error("failed to load config file", "error", err)
			return
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := postgres.NewDB(instanceProfile)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			return
		}
		kv, err := cache.New(instanceProfile)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			return
		}

		storeInstance := store.New(dbDriver, kv, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		metricsConfig := telemetry.DefaultConfig()
		metricsConfig.Version = instanceProfile.Version
		metricsConfig.Environment = instanceProfile.TelemetryEnv
		metrics := telemetry.NewExporter(metricsConfig)
		llmService := llm.NewService(instanceProfile, storeInstance, metrics)

		var embedder embedding.Service
		if instanceProfile.EnableEventEmbedding {
			embedder, err = embedding.NewService(instanceProfile, metrics)
			if err != nil {
				slog.Error("failed to build embedding service", "error", err)
				return
			}
			if err := embedding.CheckSanity(ctx, embedder, instanceProfile); err != nil {
				slog.Error("embedding sanity check failed", "error", err)
				return
			}
		}

		flusher := flush.New(instanceProfile, storeInstance, llmService, embedder)
		userLocks := lock.New(kv)
		bufferController := buffer.New(instanceProfile, storeInstance, userLocks, flusher)
		assembler := recall.New(instanceProfile, storeInstance, llmService, embedder)

		s, err := server.NewServer(instanceProfile, storeInstance, bufferController, assembler, metrics)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// The default signal sent by `kill` is SIGTERM, which most
		// orchestrators use for graceful shutdown.
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			return
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 8019)
	viper.SetDefault("instance", "default")
	viper.SetDefault("config", "config.yaml")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8019, "port of server")
	rootCmd.PersistentFlags().String("instance", "default", "instance name, namespaces locks and usage counters")
	rootCmd.PersistentFlags().String("dsn", "", "postgres connection string (aka. DSN)")
	rootCmd.PersistentFlags().String("redis-url", "", "redis connection URL")
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to the optional YAML config file")

	for _, flag := range []string{"mode", "addr", "port", "instance", "dsn", "redis-url", "config"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("memoria")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Memoria %s started successfully!\n", p.Version)

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Instance: %s\n", p.Instance)
	if len(p.Addr) == 0 {
		fmt.Printf("API served at: http://localhost:%d/api/v1\n", p.Port)
	} else {
		fmt.Printf("API served at: http://%s:%d/api/v1\n", p.Addr, p.Port)
	}
	fmt.Printf("Metrics at: /metrics\n")
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
