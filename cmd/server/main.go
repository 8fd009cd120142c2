package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"flag-arena/internal/api"
	"flag-arena/internal/bot"
	"flag-arena/internal/config"
	"flag-arena/internal/game"
	"flag-arena/internal/metrics"
	"flag-arena/internal/protocol"
	"flag-arena/internal/server"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🚩 ================================")
	log.Println("🚩  FLAG ARENA - GAME SERVER")
	log.Println("🚩 ================================")

	appConfig := config.Load()
	serverCfg := appConfig.Server
	gameCfg := appConfig.Game
	limits := appConfig.Limits

	codec, err := protocol.ForName(serverCfg.WireFormat)
	if err != nil {
		log.Fatalf("❌ Invalid WIRE_FORMAT: %v", err)
	}

	engine := game.NewEngine(game.EngineConfig{
		TickRate:    gameCfg.TickRate,
		WorldWidth:  float32(gameCfg.WorldWidth),
		WorldHeight: float32(gameCfg.WorldHeight),
		BoxCount:    gameCfg.BoxCount,
		MaxBullets:  gameCfg.MaxBullets,
	})
	engine.OnTick = metrics.RecordTick
	log.Printf("🎮 Config: %d TPS, %dx%d world, %d boxes, %s framing",
		gameCfg.TickRate, gameCfg.WorldWidth, gameCfg.WorldHeight, gameCfg.BoxCount, codec.Name())

	if gameCfg.EventLogPath != "" {
		if err := engine.StartEventLog(gameCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", gameCfg.EventLogPath)
		}
	}

	if appConfig.API.DebugEnabled {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	registry := server.NewRegistry(codec, serverCfg.WriteTimeout)
	engine.AddBroadcaster(registry)

	arena := server.New(server.Config{
		Codec:        codec,
		MaxPlayers:   serverCfg.MaxPlayers,
		CommandRate:  limits.CommandRate,
		CommandBurst: limits.CommandBurst,
		WriteTimeout: serverCfg.WriteTimeout,
	}, engine, registry)
	if err := arena.Listen(serverCfg.ListenAddr); err != nil {
		log.Fatalf("❌ Failed to bind game server: %v", err)
	}

	engine.Start()

	// In-process bots still connect over TCP and read the engine snapshot
	swarm := bot.NewSwarm(bot.Config{
		Addr:          loopbackAddr(arena.Addr()),
		Codec:         codec,
		Tick:          appConfig.Bots.Tick,
		ShootCooldown: appConfig.Bots.ShootCooldown,
		WriteTimeout:  serverCfg.WriteTimeout,
		WorldWidth:    float32(gameCfg.WorldWidth),
		WorldHeight:   float32(gameCfg.WorldHeight),
	}, engine)
	swarm.Start(context.Background(), appConfig.Bots.Count)

	var apiServer *api.Server
	if appConfig.API.Enabled {
		apiServer = api.NewServer(api.RouterConfig{
			Engine: engine,
			Stats: map[string]api.StatsProvider{
				"connections": registry,
				"acceptor":    arena,
				"bots":        swarm,
			},
			RateLimitConfig: &api.RateLimitConfig{
				RequestsPerSecond: limits.HTTPRate,
				Burst:             limits.HTTPBurst,
				CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
			},
			CORSOrigins: appConfig.API.CORSOrigins,
		}, appConfig.API.PushInterval)

		go func() {
			log.Printf("🌐 Spectator API on http://localhost%s", appConfig.API.Addr)
			if err := apiServer.Start(appConfig.API.Addr); err != nil {
				log.Fatalf("❌ API server failed: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	if apiServer != nil {
		apiServer.Stop()
	}
	swarm.Stop()
	arena.Stop()
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}

// loopbackAddr turns a wildcard listen address into one local bots can dial
func loopbackAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsUnspecified() {
		return addr.String()
	}
	return net.JoinHostPort("127.0.0.1", port)
}
