// cmd/projector-cli/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projector-service/cmd/projector-cli/interactive"
	"projector-service/internal/catalog"
	"projector-service/internal/config"
	"projector-service/internal/driver/epson"
	"projector-service/internal/protocol"
	"projector-service/internal/utils"
)

func main() {
	var (
		host        string
		port        int
		serialPort  int
		scale       float64
		timeout     time.Duration
		catalogPath string
		logLevel    string
	)

	flag.StringVar(&host, "host", "", "Projector host name or address")
	flag.IntVar(&port, "port", protocol.DefaultControlPort, "ESC/VP.net control port")
	flag.IntVar(&serialPort, "serial-port", protocol.DefaultSerialPort, "Serial number side-channel port")
	flag.Float64Var(&scale, "scale", 1.0, "Timeout scale factor")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Per-command deadline")
	flag.StringVar(&catalogPath, "catalog", "", "Catalog override file")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if host == "" {
		fmt.Fprintln(os.Stderr, "-host is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(host, port, serialPort, scale, timeout, catalogPath, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(host string, port, serialPort int, scale float64, timeout time.Duration, catalogPath, logLevel string) error {
	logger, err := utils.NewLogger(&config.LoggingConfig{
		Level:  logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return err
	}
	defer utils.CloseLogger(logger)

	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	client, err := epson.NewClient(epson.ClientConfig{
		ID:           host,
		Host:         host,
		Port:         port,
		SerialPort:   serialPort,
		TimeoutScale: scale,
	}, cat, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	console, err := interactive.New(client, cat, historyFile(), timeout)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	logger.Debug("Console started", zap.String("host", host), zap.Int("port", port))
	console.Run(ctx)
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.Default()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".projector_history")
}
