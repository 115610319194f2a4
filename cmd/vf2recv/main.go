// Command vf2recv drives package zmodem or package xmodem against a real
// or loopback serial port, writing whatever arrives to an output file.
// It exists to bring up a fresh RISC-V target that pulls its next boot
// stage over a UART with nothing else running.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xvanc/vf2boot/serial"
	"github.com/xvanc/vf2boot/xmodem"
	"github.com/xvanc/vf2boot/zmodem"
)

var (
	device   string
	baud     int
	outPath  string
	useCRC32 bool
	useXmodem bool
	loopback  bool
	verbose   bool
	maxSize   int
)

var rootCmd = &cobra.Command{
	Use:   "vf2recv",
	Short: "Receive a file over ZMODEM or XMODEM-CRC and write it to disk",
	Long: `vf2recv - serial file-reception tool
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Drives the receiving half of ZMODEM (default) or XMODEM-CRC (--xmodem)
against a serial port and streams the incoming file to --out. Built for
bringing up a fresh board over a bare UART: one file, one direction.`,
	RunE: runReceive,
}

func init() {
	rootCmd.Flags().StringVarP(&device, "device", "d", "/dev/ttyUSB0", "serial device path")
	rootCmd.Flags().IntVarP(&baud, "baud", "b", 115200, "baud rate")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "received.bin", "output file path")
	rootCmd.Flags().BoolVar(&useCRC32, "crc32", false, "advertise 32-bit CRC support (CANFC32) in ZRINIT (ZMODEM only)")
	rootCmd.Flags().BoolVar(&useXmodem, "xmodem", false, "use the XMODEM-CRC receiver instead of ZMODEM")
	rootCmd.Flags().BoolVar(&loopback, "loopback", false, "drive an in-memory loopback device instead of --device (for smoke testing)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace every byte crossing the wire")
	rootCmd.Flags().IntVar(&maxSize, "max-size", 16<<20, "maximum bytes to accept into the sink buffer")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runReceive(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	if verbose {
		logger.SetLevel(logrus.TraceLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	dev, closeDev, err := openDevice()
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	if closeDev != nil {
		defer closeDev()
	}

	sink := make([]byte, maxSize)
	ctx := context.Background()

	var n int
	if useXmodem {
		n, err = receiveXmodem(ctx, dev, sink, logger)
	} else {
		n, err = receiveZmodem(ctx, dev, sink, logger)
	}
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	if err := os.WriteFile(outPath, sink[:n], 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	logger.Infof("wrote %d bytes to %s", n, outPath)
	return nil
}

func openDevice() (interface {
	zmodem.SerialDevice
	xmodem.SerialDevice
}, func(), error) {
	if loopback {
		a, _ := serial.NewLoopbackPair(64)
		return a, nil, nil
	}
	host, err := serial.OpenHost(device, baud)
	if err != nil {
		return nil, nil, err
	}
	return host, func() { _ = host.Close() }, nil
}

func receiveZmodem(ctx context.Context, dev zmodem.SerialDevice, sink []byte, logger *logrus.Logger) (int, error) {
	cfg := zmodem.DefaultConfig()
	cfg.Logger = logger
	cfg.AdvertiseCRC32 = useCRC32
	cfg.OnMeta = func(data []byte) {
		logger.Infof("file metadata: %q", data)
	}
	r := zmodem.NewReceiver(dev, cfg)
	return r.Receive(ctx, sink)
}

func receiveXmodem(ctx context.Context, dev xmodem.SerialDevice, sink []byte, logger *logrus.Logger) (int, error) {
	cfg := xmodem.DefaultConfig()
	cfg.Logger = logger
	r := xmodem.NewReceiver(dev, cfg)
	for {
		n, err := r.Receive(ctx, sink)
		if xmodem.IsNoResponse(err) {
			logger.Warn("no response to CRC request, retrying")
			continue
		}
		return n, err
	}
}
