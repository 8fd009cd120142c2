// Command bots runs a standalone bot swarm against a remote arena server.
// Each bot decides on the snapshots the server broadcasts to it.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"flag-arena/internal/bot"
	"flag-arena/internal/config"
	"flag-arena/internal/protocol"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	appConfig := config.Load()
	botCfg := appConfig.Bots

	addr := flag.String("addr", botCfg.ServerAddr, "arena server address")
	count := flag.Int("n", botCfg.Count, "number of bots")
	format := flag.String("format", appConfig.Server.WireFormat, "wire format: framed or delimited")
	flag.Parse()

	codec, err := protocol.ForName(*format)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *count <= 0 {
		log.Println("🤖 No bots requested (set BOT_COUNT, bots.txt or -n)")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	swarm := bot.NewSwarm(bot.Config{
		Addr:          *addr,
		Codec:         codec,
		Tick:          botCfg.Tick,
		ShootCooldown: botCfg.ShootCooldown,
		WriteTimeout:  appConfig.Server.WriteTimeout,
		WorldWidth:    float32(appConfig.Game.WorldWidth),
		WorldHeight:   float32(appConfig.Game.WorldHeight),
	}, nil)
	if swarm.Start(ctx, *count) == 0 {
		log.Fatalf("❌ No bots could connect to %s", *addr)
	}

	<-ctx.Done()
	log.Println("🛑 Stopping bots...")
	swarm.Stop()
}
