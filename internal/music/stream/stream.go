// Package stream is the discordgo-backed voice transport: ffmpeg decodes a
// remote media URL to PCM, gopus encodes it and the voice connection sends
// it.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
	// bytesPerSecond of s16le stereo PCM
	bytesPerSecond = sampleRate * channels * 2

	maxRecoveryAttempts = 3
)

func ffmpegArgs(link string, seekSec float64) []string {
	return []string{
		"-ss", fmt.Sprintf("%.3f", seekSec),
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// process is one running decoder.
type process interface {
	io.Reader
	// Wait reports how the decoder exited; nil means it reached the end.
	Wait() error
	Kill()
}

type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

func startFFmpeg(path, link string, seekSec float64) (process, error) {
	cmd := exec.Command(path, ffmpegArgs(link, seekSec)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &ffmpegProcess{cmd: cmd, stdout: stdout}, nil
}

func (p *ffmpegProcess) Read(b []byte) (int, error) { return p.stdout.Read(b) }

func (p *ffmpegProcess) Wait() error {
	p.once.Do(func() { p.err = p.cmd.Wait() })
	return p.err
}

func (p *ffmpegProcess) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.Wait()
}

// pcmStream restarts the decoder from the current position when it dies
// before the end of the media. Close may be called while a Read is blocked.
type pcmStream struct {
	start func(seekSec float64) (process, error)
	log   zerolog.Logger

	mu      sync.Mutex
	proc    process
	closed  bool
	read    int64
	retries int
}

func newPCMStream(start func(seekSec float64) (process, error), log zerolog.Logger) (*pcmStream, error) {
	proc, err := start(0)
	if err != nil {
		return nil, err
	}
	return &pcmStream{start: start, proc: proc, log: log}, nil
}

func (s *pcmStream) current() (process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc, s.closed
}

func (s *pcmStream) Read(p []byte) (int, error) {
	for {
		proc, closed := s.current()
		if closed {
			return 0, io.ErrClosedPipe
		}

		n, err := proc.Read(p)
		s.mu.Lock()
		s.read += int64(n)
		s.mu.Unlock()

		if errors.Is(err, io.EOF) && n == 0 {
			if s.recover(proc) {
				continue
			}
			return 0, io.EOF
		}
		return n, err
	}
}

func (s *pcmStream) recover(dead process) bool {
	waitErr := dead.Wait()
	if waitErr == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.retries >= maxRecoveryAttempts {
		s.log.Warn().Err(waitErr).Msg("max recovery attempts reached")
		return false
	}
	s.retries++

	seek := float64(s.read) / bytesPerSecond
	s.log.Warn().Err(waitErr).Int("attempt", s.retries).Float64("seek", seek).Msg("decoder ended prematurely, recovering")

	proc, err := s.start(seek)
	if err != nil {
		s.log.Error().Err(err).Msg("recovery failed")
		return false
	}
	s.proc = proc
	return true
}

func (s *pcmStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	proc := s.proc
	s.mu.Unlock()

	proc.Kill()
	return nil
}
