// Command dxsim serves a synthetic DX cluster telnet feed for local
// development: it issues a login prompt, then streams randomized spot
// lines so the streaming adapter can be exercised without touching a
// real cluster node.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/spotwatch/pkg/logger"
)

const (
	defaultAddr     = ":7300"
	defaultInterval = 2 * time.Second
)

var (
	spotters  = []string{"W1ABC", "VE3XYZ", "G4QRP", "JA1DX", "VU3YBH"}
	callsigns = []string{"N4OG", "K1AB", "W2CD", "DL1EF", "AT4WWA", "ZL2GH"}
	modes     = []string{"FT8", "CW", "SSB", "FT4", "RTTY", ""}
	comments  = []string{"loud today", "World Wide Award", "up 1", "calling CQ", ""}
	bands     = []float64{1840.0, 3573.0, 7074.0, 14074.0, 21074.0, 28074.5, 50313.0}
)

func main() {
	var (
		addr     = flag.String("addr", defaultAddr, "TCP listen address")
		interval = flag.Duration("interval", defaultInterval, "delay between spot lines")
		banner   = flag.String("banner", "Welcome to the simulated cluster node", "banner sent after login")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get().Named("dxsim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		os.Stderr.WriteString("listen failed: " + err.Error() + "\n")
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info(ctx, "simulated cluster listening", logger.String("addr", *addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn(ctx, "accept failed", logger.Error(err))
			continue
		}
		go serve(ctx, conn, *interval, *banner, log)
	}
}

func serve(ctx context.Context, conn net.Conn, interval time.Duration, banner string, log logger.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log.Info(ctx, "client connected", logger.String("remote", remote))

	if _, err := fmt.Fprintf(conn, "login: "); err != nil {
		return
	}
	// The adapter replies with its callsign; read one line and move on.
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Read(buf); err != nil {
		log.Warn(ctx, "no login received", logger.String("remote", remote), logger.Error(err))
	}
	_ = conn.SetReadDeadline(time.Time{})
	if _, err := fmt.Fprintf(conn, "%s\r\n", banner); err != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(conn, "%s\r\n", spotLine()); err != nil {
				log.Info(ctx, "client disconnected", logger.String("remote", remote))
				return
			}
		}
	}
}

// spotLine fabricates one cluster spot in the standard announcement
// format, with mode and comment omitted at random like real traffic.
func spotLine() string {
	freq := bands[rand.Intn(len(bands))] + rand.Float64()
	line := fmt.Sprintf("DX de %s: %8.1f %s",
		spotters[rand.Intn(len(spotters))],
		freq,
		callsigns[rand.Intn(len(callsigns))])
	if mode := modes[rand.Intn(len(modes))]; mode != "" {
		line += " " + mode
	}
	if comment := comments[rand.Intn(len(comments))]; comment != "" {
		line += " " + comment
	}
	if rand.Intn(2) == 0 {
		line += " " + time.Now().UTC().Format("1504") + "Z"
	}
	return line
}
