package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/grandcat/zeroconf"

	"collabcanvas/config"
)

var errRelayNotFound = errors.New("no relay found over mDNS")

// discoverRelay returns the relay base URL: the configured one, or the first
// relay answering an mDNS browse within the discovery timeout.
func discoverRelay(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Agent.ServerURL != "" {
		return strings.TrimRight(cfg.Agent.ServerURL, "/"), nil
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("initialize mDNS resolver: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Discovery.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan string, 1)
	go func(results <-chan *zeroconf.ServiceEntry) {
		for entry := range results {
			if base, ok := entryURL(entry); ok {
				select {
				case found <- base:
					cancel()
				default:
				}
			}
		}
	}(entries)

	if err := resolver.Browse(ctx, cfg.Discovery.Service, cfg.Discovery.Domain, entries); err != nil {
		return "", fmt.Errorf("browse for mDNS services: %w", err)
	}
	<-ctx.Done()
	select {
	case base := <-found:
		return base, nil
	default:
		return "", errRelayNotFound
	}
}

func entryURL(e *zeroconf.ServiceEntry) (string, bool) {
	var host string
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	default:
		return "", false
	}
	return "ws://" + net.JoinHostPort(host, fmt.Sprint(e.Port)), true
}

// socketURL is the relay socket for one document and participant.
func socketURL(base, doc, participantID string) string {
	return base + "/ws/" + url.PathEscape(doc) + "?participant=" + url.QueryEscape(participantID)
}

// httpBase maps a ws(s) base URL to its http(s) counterpart.
func httpBase(base string) string {
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}
