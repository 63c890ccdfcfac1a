package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeProcess struct {
	r       io.Reader
	waitErr error
	killed  bool
}

func (p *fakeProcess) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *fakeProcess) Wait() error                { return p.waitErr }
func (p *fakeProcess) Kill()                      { p.killed = true }

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://media.example/a", 12.5)
	if args[0] != "-ss" || args[1] != "12.500" {
		t.Errorf("expected seek first, got %v", args[:2])
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("expected stdout output, got %q", args[len(args)-1])
	}
	found := false
	for i, a := range args {
		if a == "-i" && args[i+1] == "https://media.example/a" {
			found = true
		}
	}
	if !found {
		t.Errorf("input link missing from %v", args)
	}
}

func TestPCMStream(t *testing.T) {
	t.Run("clean exit ends the stream", func(t *testing.T) {
		s, err := newPCMStream(func(float64) (process, error) {
			return &fakeProcess{r: bytes.NewReader([]byte("abcd"))}, nil
		}, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != "abcd" {
			t.Errorf("unexpected data %q", got)
		}
	})

	t.Run("premature exit restarts from the byte position", func(t *testing.T) {
		var (
			mu    sync.Mutex
			seeks []float64
		)
		first := make([]byte, bytesPerSecond)
		s, err := newPCMStream(func(seek float64) (process, error) {
			mu.Lock()
			defer mu.Unlock()
			seeks = append(seeks, seek)
			if len(seeks) == 1 {
				return &fakeProcess{r: bytes.NewReader(first), waitErr: errors.New("signal: killed")}, nil
			}
			return &fakeProcess{r: bytes.NewReader([]byte("tail"))}, nil
		}, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != bytesPerSecond+4 {
			t.Errorf("expected %d bytes, got %d", bytesPerSecond+4, len(got))
		}
		if len(seeks) != 2 || seeks[1] != 1 {
			t.Errorf("expected restart at 1s, got %v", seeks)
		}
	})

	t.Run("gives up after max recovery attempts", func(t *testing.T) {
		starts := 0
		s, err := newPCMStream(func(float64) (process, error) {
			starts++
			return &fakeProcess{r: bytes.NewReader(nil), waitErr: errors.New("exit status 1")}, nil
		}, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.ReadAll(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if starts != maxRecoveryAttempts+1 {
			t.Errorf("expected %d starts, got %d", maxRecoveryAttempts+1, starts)
		}
	})

	t.Run("close kills the decoder", func(t *testing.T) {
		proc := &fakeProcess{r: bytes.NewReader([]byte("x"))}
		s, _ := newPCMStream(func(float64) (process, error) { return proc, nil }, zerolog.Nop())
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if !proc.killed {
			t.Error("expected decoder to be killed")
		}
		if _, err := s.Read(make([]byte, 1)); !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("expected closed pipe, got %v", err)
		}
	})
}
