package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/spawnpool/internal/config"
	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/core/event"
	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/data"
	"github.com/l1jgo/spawnpool/internal/metrics"
	"github.com/l1jgo/spawnpool/internal/persist"
	"github.com/l1jgo/spawnpool/internal/prefab"
	"github.com/l1jgo/spawnpool/internal/scene"
	"github.com/l1jgo/spawnpool/internal/scripting"
	"github.com/l1jgo/spawnpool/internal/system"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            spawnsim  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        物件池 · 生成/回收模擬器           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m名稱:\033[0m %s\n\n", name)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/spawnsim.toml"
	if p := os.Getenv("SPAWNSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Optional stats database
	printSection("資料庫")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	var saver system.StatsSaver
	if db != nil {
		defer db.Close()
		saver = persist.NewStatsRepo(db)
		printOK("PostgreSQL 已連線，遷移完成")
	} else {
		printOK("未設定 DSN，統計不寫入資料庫")
	}
	fmt.Println()

	// 4. Load data
	printSection("資料載入")
	prefabs, err := data.LoadPrefabTable(cfg.Data.PrefabFile, cfg.Data.Charset)
	if err != nil {
		return fmt.Errorf("load prefabs: %w", err)
	}
	printStat("預製物件", prefabs.Count())

	var spawns []data.SpawnEntry
	if cfg.Data.SpawnFile != "" {
		spawns, err = data.LoadSpawnList(cfg.Data.SpawnFile)
		if err != nil {
			return fmt.Errorf("load spawn list: %w", err)
		}
	}
	printStat("生成排程", len(spawns))

	scripts, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printStat("行為腳本", len(scripts.Names()))
	fmt.Println()

	// 5. World, scene and pools
	printSection("物件池")
	world := ecs.NewWorld()
	bus := event.NewBus()
	sc := scene.New(world, scripts, log)
	pools := scene.NewPools(sc,
		prefab.WithLogger(log),
		prefab.WithBus(bus),
		prefab.WithInitialCapacity(cfg.Pool.InitialCapacity),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector, err = metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		collector.Subscribe(bus)
		srv := serveMetrics(cfg.Metrics.BindAddress, reg, log)
		defer srv.Close()
	}

	seed := cfg.Loop.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	spawner := system.NewSpawnerSystem(pools, prefabs, spawns, rand.New(rand.NewSource(seed)), log)
	if cfg.Pool.Prewarm {
		n, err := spawner.Prewarm()
		if err != nil {
			return err
		}
		printStat("預先建立", n)
	}
	printStat("物件池", pools.Len())
	fmt.Println()

	// 6. Systems
	stats := system.NewStatsSystem(pools, collector, saver, cfg.Loop.StatsInterval, log)
	runner := coresys.NewRunner()
	runner.Register(system.NewDispatchSystem(bus))
	runner.Register(system.NewLifetimeSystem(sc, pools))
	runner.Register(spawner)
	runner.Register(stats)
	runner.Register(system.NewCleanupSystem(world, pools, log))

	// 7. Loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	printSection("模擬啟動")
	if cfg.Metrics.Enabled {
		printReady(fmt.Sprintf("指標位址 http://%s/metrics", cfg.Metrics.BindAddress))
	}
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Loop.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Loop.TickRate)
			if cfg.Loop.MaxTicks > 0 && runner.Ticks() >= cfg.Loop.MaxTicks {
				log.Info("已達 tick 上限", zap.Uint64("ticks", runner.Ticks()))
				shutdown(stats, pools, sc, log)
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			shutdown(stats, pools, sc, log)
			return nil
		}
	}
}

func shutdown(stats *system.StatsSystem, pools *scene.Pools, sc *scene.Scene, log *zap.Logger) {
	stats.Flush()
	log.Info("模擬已停止",
		zap.Int("pools", pools.Len()),
		zap.Int("active", pools.Active()),
		zap.Int("nodes", sc.NodeCount()))
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
