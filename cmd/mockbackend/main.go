package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/mockbackend"
	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		port          = flag.String("port", "5000", "HTTP port")
		prefix        = flag.String("prefix", "/api", "Path prefix of the REST surface")
		agentCount    = flag.Int("agents", 40, "Number of agents to generate")
		batchSize     = flag.Int("batch-size", 25, "Customers routed per batch")
		batchInterval = flag.Duration("batch-interval", time.Second, "Time between batches")
		seed          = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		autoStart     = flag.Int("auto-start", 0, "Start a run of this many batches on boot (0 = off)")
		logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "mockbackend").
		Logger()

	sim := mockbackend.NewSimulation(mockbackend.Settings{
		Agents:        *agentCount,
		BatchSize:     *batchSize,
		BatchInterval: *batchInterval,
		Seed:          *seed,
	}, logger)
	api := mockbackend.NewAPI(sim, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := api.Start(ctx, ":"+*port, *prefix); err != nil {
			logger.Fatal().Err(err).Msg("mock backend stopped")
		}
	}()

	if *autoStart > 0 {
		if err := sim.Start(*autoStart, types.PolicyCUCBOTA); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start simulation")
		}
	}

	printUsage(*port, *prefix)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	_ = sim.Stop()
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func printUsage(port, prefix string) {
	base := fmt.Sprintf("http://localhost:%s%s", port, prefix)
	fmt.Println()
	fmt.Println("Mock routing backend endpoints:")
	fmt.Printf("  GET  %s/simulation/status\n", base)
	fmt.Printf("  POST %s/simulation/start   {\"n_batches\":50,\"policy\":\"CUCB-OTA\"}\n", base)
	fmt.Printf("  POST %s/simulation/stop\n", base)
	fmt.Printf("  GET  %s/metrics/current | /metrics/historical | /agents | /policies/compare\n", base)
	fmt.Println()
	fmt.Println("Example:")
	fmt.Printf("  curl -X POST %s/simulation/start -d '{\"n_batches\":50,\"policy\":\"FCFS\"}'\n", base)
	fmt.Println()
}
