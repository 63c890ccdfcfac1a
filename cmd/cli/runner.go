package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/stream"
)

var errMissingInput = errors.New("missing input argument")

type runner struct {
	out io.Writer
	log zerolog.Logger
}

func newRunner(out io.Writer, log zerolog.Logger) *runner {
	return &runner{out: out, log: log}
}

func (r *runner) register() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "classify",
			Usage:     "Show how an input is interpreted (video, playlist or search)",
			Arguments: []cli.Argument{&cli.StringArg{Name: "input"}},
			Action:    r.classify,
		},
		{
			Name:      "resolve",
			Usage:     "Resolve an input into tracks",
			Arguments: []cli.Argument{&cli.StringArg{Name: "input"}},
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			},
			Action: r.resolve,
		},
		{
			Name:      "stream-url",
			Usage:     "Print the direct audio URL for a video",
			Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
			Action:    r.streamURL,
		},
	}
}

func (r *runner) classify(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return errMissingInput
	}
	in := source_resolver.Classify(input)
	fmt.Fprintf(r.out, "kind:  %s\n", in.Kind)
	if in.ID != "" {
		fmt.Fprintf(r.out, "id:    %s\n", in.ID)
	}
	if in.Query != "" {
		fmt.Fprintf(r.out, "query: %s\n", in.Query)
	}
	return nil
}

func (r *runner) resolve(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return errMissingInput
	}

	videos, err := r.videoClient(cmd)
	if err != nil {
		return err
	}
	data, err := youtube.NewDataClient(ctx, cmd.String("api-key"))
	if err != nil {
		return err
	}

	opts := source_resolver.DefaultOptions()
	opts.Logger = r.log
	res, err := source_resolver.New(videos, data, data, opts).Resolve(ctx, input, "cli")
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Playlist != nil {
		fmt.Fprintf(r.out, "playlist: %s (%d items)\n", res.Playlist.Name, res.Playlist.TotalCount)
	}
	for i, t := range res.Tracks {
		fmt.Fprintf(r.out, "%3d. %s [%s]\n     %s\n", i+1, t.Title, music.FormatDuration(t.Duration), t.URL)
	}
	return nil
}

func (r *runner) streamURL(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("url")
	if uri == "" {
		return errMissingInput
	}

	videos, err := r.videoClient(cmd)
	if err != nil {
		return err
	}
	opener := stream.NewOpener(stream.OpenerOptions{
		Client: videos.Client(),
		Proxy:  cmd.String("proxy"),
		Logger: r.log,
	})

	link, err := opener.StreamURL(ctx, uri)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, link)
	return nil
}

func (r *runner) videoClient(cmd *cli.Command) (*youtube.VideoClient, error) {
	httpClient, err := youtube.NewHTTPClient(cmd.String("proxy"), r.log)
	if err != nil {
		return nil, err
	}
	return youtube.NewVideoClient(httpClient), nil
}
