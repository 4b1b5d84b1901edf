// Command gows-client connects to a WebSocket server, sends each non-empty
// line read from standard input as a text message, and prints every
// message it receives, until standard input ends.
package main

import (
	"bufio"
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
		Name:  "gows-client",
		Usage: "connect to a WebSocket server and exchange text messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "server address to connect to",
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
		fmt.Fprintf(os.Stderr, "gows-client: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cmd.Bool("pretty-log") {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	conn, err := gows.Connect(cmd.String("addr"),
		gows.WithLogger(log),
		gows.WithReadTimeout(cmd.Duration("read-timeout")),
		gows.WithMaxPayloadLength(int64(cmd.Int("max-payload"))),
	)
	if err != nil {
		return err
	}

	handler := conn.OnMessage(func(m gows.Message) {
		switch m.Kind {
		case gows.MessageText:
			fmt.Printf("< %s\n", m.Text)
		case gows.MessageBinary:
			fmt.Printf("< [%d binary bytes]\n", len(m.Data))
		}
	})
	defer handler.Stop()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := conn.Send(gows.TextMessage(line)); err != nil {
			return err
		}
	}

	return conn.Close()
}
