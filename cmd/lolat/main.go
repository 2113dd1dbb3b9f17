// Command lolat polls an HC-SR04 mounted over a container and publishes the
// liquid level and volume.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dougalf/lolat/internal/api"
	"github.com/dougalf/lolat/internal/config"
	"github.com/dougalf/lolat/internal/db"
	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/metrics"
	"github.com/dougalf/lolat/internal/poller"
	"github.com/dougalf/lolat/internal/timeutil"
	"github.com/dougalf/lolat/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (built-in defaults if empty)")
	devMode     = flag.Bool("dev", false, "Run against a simulated sensor and keep points in memory")
	listen      = flag.String("listen", "", "HTTP listen address for /api and /debug (overrides config)")
	dbPath      = flag.String("db", "", "Reading log path (overrides config)")
	driver      = flag.String("driver", "", "GPIO driver: periph, rpio or fake (overrides config)")
	once        = flag.Bool("once", false, "Run a single polling cycle and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Printf("Graceful shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Empty(), nil
	}
	return config.LoadConfig(path)
}

// applyFlags copies explicitly set flags over the config.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.SetListen(*listen)
		case "db":
			cfg.SetDBPath(*dbPath)
		case "driver":
			cfg.SetBoardDriver(*driver)
		}
	})
	if *devMode {
		cfg.SetBoardDriver(gpio.DriverFake)
	}
}

func run(cfg *config.Config) error {
	sensorCfg, err := cfg.SensorConfig()
	if err != nil {
		return fmt.Errorf("invalid sensor config: %w", err)
	}

	board, err := hcsr04.OpenBoard(cfg.GetBoardDriver(), sensorCfg)
	if err != nil {
		return err
	}
	defer gpio.Close(board)

	sensor, err := hcsr04.New(board, timeutil.RealClock{}, sensorCfg)
	if err != nil {
		return err
	}
	if err := sensor.Open(); err != nil {
		return err
	}
	defer func() {
		if err := sensor.Close(); err != nil {
			log.Printf("failed to close sensor: %v", err)
		}
	}()

	var database *db.DB
	if path := cfg.GetDBPath(); path != "" {
		database, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to open reading log: %w", err)
		}
		defer database.Close()
		log.Printf("reading log %s (run %s)", path, database.RunID())
	}

	sink, closers, err := buildSinks(cfg, database, *devMode)
	if err != nil {
		return err
	}
	defer closeAll(closers)

	p := poller.New(sensor, cfg.Mapper(), sink)
	p.Interval = cfg.GetPollInterval()
	log.Printf("polling every %v, %v", p.Interval, p.Mapper)

	if *once {
		res := p.RunOnce(context.Background())
		if res.Err != nil {
			return res.Err
		}
		return nil
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			log.Printf("poller stopped: %v", err)
		}
		log.Print("poller routine terminated")
	}()

	if addr := cfg.GetListen(); addr != "" {
		mux, err := newMux(p, database)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, addr, mux)
		}()
	}

	wg.Wait()
	return nil
}

// buildSinks assembles the configured sinks. Dev mode keeps points in
// memory and skips the network sinks.
func buildSinks(cfg *config.Config, database *db.DB, dev bool) (metrics.Multi, []io.Closer, error) {
	var (
		sinks   metrics.Multi
		closers []io.Closer
	)
	if database != nil {
		sinks = append(sinks, metrics.StoreSink{Store: database})
	}
	if dev {
		return append(sinks, metrics.NewRecorder(100)), closers, nil
	}

	if addr := cfg.GetTelegrafAddr(); addr != "" {
		sinks = append(sinks, metrics.NewTelegrafSink(cfg.GetTelegrafNetwork(), addr, cfg.GetTelegrafTags()))
		log.Printf("publishing to telegraf at %s://%s", cfg.GetTelegrafNetwork(), addr)
	}
	if broker := cfg.GetMQTTBroker(); broker != "" {
		s, err := metrics.NewMQTTSink(broker, cfg.GetMQTTClientID(), cfg.GetMQTTTopic())
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		sinks = append(sinks, s)
		closers = append(closers, s)
		log.Printf("publishing to mqtt %s topic %s", broker, cfg.GetMQTTTopic())
	}
	if brokers := cfg.GetKafkaBrokers(); len(brokers) > 0 {
		s := metrics.NewKafkaSink(brokers, cfg.GetKafkaTopic())
		sinks = append(sinks, s)
		closers = append(closers, s)
		log.Printf("publishing to kafka %v topic %s", brokers, cfg.GetKafkaTopic())
	}
	if len(sinks) == 0 {
		log.Printf("warning: no sinks configured, readings will only be logged")
	}
	return sinks, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Printf("close %T: %v", c, err)
		}
	}
}

func newMux(p *poller.Poller, database *db.DB) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	var readings api.ReadingLog
	if database != nil {
		readings = database
		if err := database.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	mux.Handle("/api/", api.NewServer(p, readings).Handler())
	return mux, nil
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}
