// Command rtpdrmplayer decodes an incoming H.264 RTP stream and scans
// decoded frames directly out to a DRM/KMS display, using the kernel's
// stateful multi-planar M2M decoder and zero-copy DMA-buf sharing.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/buldo/RtpDrmPlayer/pipeline"
	"github.com/buldo/RtpDrmPlayer/playback"
	"github.com/buldo/RtpDrmPlayer/v4l2"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		devicePath = pflag.StringP("device", "d", "/dev/video10", "decoder device path")
		listenIP   = pflag.StringP("ip", "i", "0.0.0.0", "listen address for the RTP receiver")
		listenPort = pflag.Uint16P("port", "p", 5004, "listen port for the RTP receiver")
		width      = pflag.Uint32("width", 1920, "negotiated frame width")
		height     = pflag.Uint32("height", 1080, "negotiated frame height")
	)
	pflag.Parse()

	logger := newLogger()

	pl := pipeline.New(logger)
	if err := pl.Initialize(pipeline.Config{
		DevicePath:        *devicePath,
		Width:             *width,
		Height:            *height,
		InputCodec:        v4l2.PixelFmtH264,
		OutputPixelFormat: v4l2.PixelFmtYUV420,
		Logger:            logger,
	}); err != nil {
		logger.Error().Err(err).Msg("pipeline initialization failed")
		return 1
	}
	defer pl.Teardown()

	loop := playback.New(pl, logger)
	if err := loop.Start(); err != nil {
		logger.Error().Err(err).Msg("playback loop failed to start")
		return 1
	}

	recv, err := newRTPReceiver(*listenIP, *listenPort, logger)
	if err != nil {
		logger.Error().Err(err).Msg("receiver failed to bind")
		_ = loop.Stop()
		return 1
	}
	defer recv.Close()

	go recv.run(loop.Submit)

	waitForShutdown(logger)

	if err := loop.FlushAndStop(); err != nil {
		logger.Warn().Err(err).Msg("flush on shutdown failed")
	}
	logger.Info().
		Uint64("decoded_frames", loop.DecodedCount()).
		Uint64("dropped_access_units", loop.DroppedCount()).
		Msg("shutdown complete")
	return 0
}

func newLogger() zerolog.Logger {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func waitForShutdown(logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Stringer("signal", sig).Msg("shutdown requested")
}

// rtpReceiver is a minimal stand-in for collaborator C0 (out of scope per
// spec): it strips the fixed 12-byte RTP header and forwards the remainder
// of each datagram verbatim as one access unit. Full depacketization
// (FU-A reassembly, extension headers, multiple NALs per packet) is not
// implemented here.
type rtpReceiver struct {
	conn   *net.UDPConn
	logger zerolog.Logger
}

const rtpFixedHeaderSize = 12

func newRTPReceiver(ip string, port uint16, logger zerolog.Logger) (*rtpReceiver, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: int(port)}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rtp receiver: listen %s:%d: %w", ip, port, err)
	}
	return &rtpReceiver{conn: conn, logger: logger}, nil
}

func (r *rtpReceiver) run(submit func(data []byte, rtpTimestamp uint32)) {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.logger.Debug().Err(err).Msg("rtp receiver stopped")
			return
		}
		if n <= rtpFixedHeaderSize {
			continue
		}
		timestamp := uint32(buf[4])<<24 | uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
		payload := make([]byte, n-rtpFixedHeaderSize)
		copy(payload, buf[rtpFixedHeaderSize:n])
		submit(payload, timestamp)
	}
}

func (r *rtpReceiver) Close() error {
	return r.conn.Close()
}
