package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"

	"collabcanvas/config"
)

// advertise registers the relay over mDNS so agents on the LAN can find it
// without configuration. The returned function withdraws the record.
func advertise(cfg *config.Config, logger *slog.Logger) (func(), error) {
	port, err := listenPort(cfg.Server.Address)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("CollabCanvas-%s", host),
		cfg.Discovery.Service,
		cfg.Discovery.Domain,
		port,
		[]string{"txtv=0", "path=/ws"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	logger.Info("mDNS service registered", slog.String("service", cfg.Discovery.Service), slog.Int("port", port))
	return server.Shutdown, nil
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("port %q: %w", p, err)
	}
	return port, nil
}
