// Command gows-echo runs a WebSocket server that echoes every message it
// receives back to its sender. It replaces the net/http.Hijacker-based demo
// server this library started from with one built directly on gows.Listen.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/nwby/gows"
)

func main() {
	cmd := &cli.Command{
		Name:  "gows-echo",
		Usage: "run a WebSocket echo server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "address to listen on",
				Value:   "localhost:8080",
				Sources: cli.EnvVar("GOWS_ADDR"),
			},
			&cli.DurationFlag{
				Name:    "read-timeout",
				Usage:   "how often a blocked read re-checks for new work",
				Value:   10 * time.Millisecond,
				Sources: cli.EnvVar("GOWS_READ_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "max-payload",
				Usage:   "maximum accepted frame payload length in bytes, 0 disables the cap",
				Value:   16 * 1024 * 1024,
				Sources: cli.EnvVar("GOWS_MAX_PAYLOAD"),
			},
			&cli.BoolFlag{
				Name:    "pretty-log",
				Usage:   "human-readable console logging, instead of JSON",
				Sources: cli.EnvVar("GOWS_PRETTY_LOG"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gows-echo: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.Bool("pretty-log"))

	srv, err := gows.Listen(cmd.String("addr"),
		gows.WithLogger(log),
		gows.WithReadTimeout(cmd.Duration("read-timeout")),
		gows.WithMaxPayloadLength(int64(cmd.Int("max-payload"))),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Info().Str("addr", srv.Addr().String()).Msg("gows-echo listening")

	accepted := srv.Connections().AutoAccept()
	for accepted.Next() {
		conn := accepted.Connection()
		go serve(log, conn)
	}
	return accepted.Err()
}

func serve(log zerolog.Logger, conn *gows.Connection) {
	it := conn.Messages()
	for it.Next() {
		msg := it.Message()
		if err := conn.Send(msg); err != nil {
			log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("echo failed")
			return
		}
	}
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
