// Command jukebox-cli exercises the media pipeline without a Discord session.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/keshon/jukebox/internal/logging"
)

func main() {
	log := logging.New(logging.Options{Level: "warn", Console: true})
	r := newRunner(os.Stdout, log)

	app := &cli.Command{
		Name:  "jukebox-cli",
		Usage: "Inspect how the bot resolves and streams YouTube media",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "YouTube Data API key",
				Sources: cli.EnvVars("YOUTUBE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "proxy",
				Usage:   "HTTP or SOCKS proxy for YouTube requests",
				Sources: cli.EnvVars("PROXY_URL"),
			},
		},
		Commands: r.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}
