package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/config"
	"github.com/mzelenka/dama-server/internal/discovery"
	"github.com/mzelenka/dama-server/internal/httpstat"
	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	instanceID := uuid.NewString()

	bindAddr := &net.UDPAddr{IP: net.ParseIP(cfg.Host), Port: cfg.Port}
	conn, err := net.ListenUDP("udp4", bindAddr)
	if err != nil {
		log.Fatalf("bind %s:%d: %v", cfg.Host, cfg.Port, err)
	}
	defer conn.Close()

	srv := server.New(cfg, &server.UDPSender{Conn: conn})

	banner := color.New(color.FgCyan, color.Bold)
	_, _ = banner.Printf("dama-server listening on %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("  players=%d rooms=%d turnTimeoutMs=%d reconnectWindowMs=%d\n",
		cfg.MaxPlayers, cfg.MaxRooms, cfg.TurnTimeoutMs, cfg.ReconnectWindowMs)

	obslog.L().Info("server_start",
		zap.String("instance", instanceID),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("players_limit", cfg.MaxPlayers),
		zap.Int("rooms_limit", cfg.MaxRooms),
	)

	if cfg.DiscoveryPort > 0 {
		resp, err := discovery.Listen(cfg.Host, cfg.DiscoveryPort, cfg.Port)
		if err != nil {
			log.Fatalf("discovery init error: %v", err)
		}
		defer resp.Close()
		go resp.Run()
		obslog.L().Info("discovery_listening", zap.Int("port", cfg.DiscoveryPort))
	}

	if cfg.StatusAddr != "" {
		stat := httpstat.New(instanceID, srv.Snapshot)
		go func() {
			if err := stat.Serve(cfg.StatusAddr); err != nil {
				obslog.L().Error("status_serve_failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err := srv.Run(ctx, conn); err != nil && ctx.Err() == nil {
		obslog.L().Error("server_loop_failed", zap.Error(err))
	}
	obslog.L().Info("server_stop")
}
