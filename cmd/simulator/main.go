package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/raychannel-simulator/core"
	"github.com/signalsfoundry/raychannel-simulator/internal/logging"
	"github.com/signalsfoundry/raychannel-simulator/internal/observability"
	"github.com/signalsfoundry/raychannel-simulator/internal/oracle"
	"github.com/signalsfoundry/raychannel-simulator/model"
	"github.com/signalsfoundry/raychannel-simulator/timectrl"
)

func main() {
	oracleURL := flag.String("oracle-url", "ws://localhost:5555/channel", "oracle endpoint URL")
	scene := flag.String("scene", "simple_room/simple_room.xml", "scene file, relative to the oracle's scene directory")
	frequency := flag.Int("frequency-mhz", 5210, "center frequency in MHz")
	bandwidth := flag.Int("bandwidth-mhz", 80, "nominal channel bandwidth in MHz")
	fftSize := flag.Int("fft-size", 1024, "nominal FFT size")
	spacing := flag.Int("subcarrier-spacing-hz", 78125, "OFDM subcarrier spacing in Hz")
	coherence := flag.Duration("min-coherence", 100*time.Second, "minimum channel coherence time")
	seed := flag.Uint64("seed", 1, "oracle RNG seed")
	duration := flag.Duration("duration", 10*time.Second, "simulated duration to sample")
	step := flag.Duration("step", time.Second, "simulated interval between samples")
	caching := flag.Bool("caching", true, "serve repeated lookups from the channel cache")
	optimize := flag.Bool("optimize", true, "bypass the oracle for links below the noise floor")
	lookahead := flag.Int("lookahead", 1, "look-ahead windows computed per oracle request")
	metricsAddr := flag.String("metrics-addr", "", "listen address for /metrics (empty disables the endpoint)")
	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatal(ctx, log, "failed to initialise tracing", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewChannelCollector(nil)
	if err != nil {
		fatal(ctx, log, "failed to register metrics", err)
	}
	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, collector.Handler()); err != nil {
				log.Warn(ctx, "metrics endpoint stopped", logging.String("error", err.Error()))
			}
		}()
	}

	session, err := core.NewSession(core.SessionConfig{
		SceneFile:           *scene,
		OracleURL:           *oracleURL,
		Seed:                *seed,
		FrequencyMHz:        *frequency,
		ChannelBandwidthMHz: *bandwidth,
		FFTSize:             *fftSize,
		SubcarrierSpacingHz: *spacing,
		MinCoherenceTime:    *coherence,
		Mode:                core.ModeAllPairsLookahead,
		LookaheadDepth:      *lookahead,
	}, oracle.NewClient(log), log, collector)
	if err != nil {
		fatal(ctx, log, "invalid session configuration", err)
	}

	// Two endpoints 300 m apart: a fixed access point and a station
	// performing a wall-bounded random walk inside the oracle.
	ap := core.NewEndpoint(1, model.Vector3{X: 0, Y: 0, Z: 1.5}, model.ConstantPosition())
	sta := core.NewEndpoint(2, model.Vector3{X: 300, Y: 0, Z: 1.5}, model.RandomWalk(
		model.BoundaryCondition{Kind: model.BoundaryWall, WallBounce: true},
		model.Uniform(0.5, 1.5),
		model.Uniform(0, 2*math.Pi),
	))
	for _, e := range []*core.Endpoint{ap, sta} {
		if err := session.AddEndpoint(e); err != nil {
			fatal(ctx, log, "failed to register endpoint", err)
		}
	}

	if err := session.Start(ctx); err != nil {
		fatal(ctx, log, "oracle session start failed", err)
	}

	sched := timectrl.NewScheduler()
	cache := core.NewChannelCache(session, sched, log, collector)
	cache.SetCaching(*caching)
	cache.SetOptimize(*optimize)

	for at := time.Duration(0); at <= *duration; at += *step {
		sched.ScheduleAt(at, func() {
			now := sched.Now()
			delay, err := cache.GetDelay(ctx, ap, sta)
			if err != nil {
				fatal(ctx, log, "delay query failed", err)
			}
			loss, err := cache.GetLoss(ctx, ap, sta, 20.0)
			if err != nil {
				fatal(ctx, log, "loss query failed", err)
			}
			fmt.Printf("t=%-8s delay=%-12s loss=%6.1f dB  sta=(%.1f, %.1f, %.1f)\n",
				now, delay, loss,
				sta.Position().X, sta.Position().Y, sta.Position().Z)
		})
	}
	sched.Run()

	cache.Stats().LogSummary(ctx, log)

	if err := session.Destroy(ctx); err != nil {
		fatal(ctx, log, "oracle session teardown failed", err)
	}
}

func fatal(ctx context.Context, log logging.Logger, msg string, err error) {
	log.Error(ctx, msg, logging.String("error", err.Error()))
	os.Exit(1)
}
