package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"layeh.com/gopus"

	"github.com/keshon/jukebox/internal/music/transport"
)

// unityVolume is the level at which samples pass through unscaled.
const unityVolume = 50

var ErrPlayerClosed = errors.New("player is closed")

type encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func newOpusEncoder() (encoder, error) {
	return gopus.NewEncoder(sampleRate, channels, gopus.Audio)
}

type playerEvent struct {
	pb  transport.Playback
	err error
}

// audioPlayer sends one stream at a time to a voice connection. Listener
// callbacks run on a dedicated dispatcher goroutine, so Play and Stop never
// wait for a handler.
type audioPlayer struct {
	vc         *discordgo.VoiceConnection
	newEncoder func() (encoder, error)
	log        zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	stop      chan struct{}
	active    bool
	paused    bool
	resumeCh  chan struct{}
	volume    int
	listeners []transport.Listener
	closed    bool

	evMu    sync.Mutex
	pending []playerEvent
	notify  chan struct{}
	done    chan struct{}
}

func newAudioPlayer(vc *discordgo.VoiceConnection, newEnc func() (encoder, error), log zerolog.Logger) *audioPlayer {
	p := &audioPlayer{
		vc:         vc,
		newEncoder: newEnc,
		log:        log,
		volume:     unityVolume,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go p.dispatch()
	return p
}

func (p *audioPlayer) Subscribe(l transport.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *audioPlayer) SetVolume(volume int) {
	volume = max(0, min(100, volume))
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// Play starts stream, silently superseding the one already playing.
func (p *audioPlayer) Play(stream transport.AudioStream) (transport.Playback, error) {
	enc, err := p.newEncoder()
	if err != nil {
		stream.Close()
		return 0, fmt.Errorf("encoder error: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		stream.Close()
		return 0, ErrPlayerClosed
	}
	p.gen++
	gen := p.gen
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	p.active = true
	p.unpauseLocked()
	p.mu.Unlock()

	go p.run(gen, stream, stop, enc)
	return transport.Playback(gen), nil
}

func (p *audioPlayer) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.paused {
		return false
	}
	p.paused = true
	p.resumeCh = make(chan struct{})
	return true
}

func (p *audioPlayer) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || !p.paused {
		return false
	}
	p.unpauseLocked()
	return true
}

func (p *audioPlayer) unpauseLocked() {
	if p.paused {
		p.paused = false
		close(p.resumeCh)
	}
}

// Stop ends the current stream. The player reports finished afterwards.
func (p *audioPlayer) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return false
	}
	p.active = false
	close(p.stop)
	p.stop = nil
	p.unpauseLocked()
	return true
}

// Shutdown stops playback without reporting it and ends the dispatcher.
func (p *audioPlayer) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.active = false
	p.unpauseLocked()
	p.mu.Unlock()

	close(p.done)
}

func (p *audioPlayer) run(gen uint64, stream transport.AudioStream, stop <-chan struct{}, enc encoder) {
	err := p.stream(stream, stop, enc)
	stream.Close()
	_ = p.vc.Speaking(false)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.stop = nil
	p.unpauseLocked()
	p.mu.Unlock()

	if err != nil {
		p.log.Warn().Err(err).Msg("playback failed")
	}
	p.emit(playerEvent{pb: transport.Playback(gen), err: err})
}

func (p *audioPlayer) stream(stream io.Reader, stop <-chan struct{}, enc encoder) error {
	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	_ = p.vc.Speaking(true)

	for {
		if !p.waitUnpaused(stop) {
			return nil
		}

		_, err := io.ReadFull(stream, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return fmt.Errorf("read error: %w", err)
			}
		}

		p.mu.Lock()
		gain := float64(p.volume) / unityVolume
		p.mu.Unlock()
		for i := range intBuf {
			intBuf[i] = scale(int16(binary.LittleEndian.Uint16(pcmBuf[i*2:i*2+2])), gain)
		}

		opus, err := enc.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case <-stop:
			return nil
		case p.vc.OpusSend <- opus:
		}
	}
}

// waitUnpaused blocks while paused. It reports false once stop fires.
func (p *audioPlayer) waitUnpaused(stop <-chan struct{}) bool {
	for {
		p.mu.Lock()
		paused, resume := p.paused, p.resumeCh
		p.mu.Unlock()

		select {
		case <-stop:
			return false
		default:
		}
		if !paused {
			return true
		}
		select {
		case <-stop:
			return false
		case <-resume:
		}
	}
}

func scale(sample int16, gain float64) int16 {
	if gain == 1 {
		return sample
	}
	v := math.Round(float64(sample) * gain)
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}

func (p *audioPlayer) emit(ev playerEvent) {
	p.evMu.Lock()
	p.pending = append(p.pending, ev)
	p.evMu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *audioPlayer) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case <-p.notify:
		}

		for {
			p.evMu.Lock()
			if len(p.pending) == 0 {
				p.evMu.Unlock()
				break
			}
			ev := p.pending[0]
			p.pending = p.pending[1:]
			p.evMu.Unlock()

			p.mu.Lock()
			listeners := append([]transport.Listener(nil), p.listeners...)
			p.mu.Unlock()

			for _, l := range listeners {
				if ev.err != nil {
					l.OnError(ev.pb, ev.err)
				} else {
					l.OnFinished(ev.pb)
				}
			}
		}
	}
}
