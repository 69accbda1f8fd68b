package engine

import (
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/stemtube/stemmix/internal/source"
)

// Device abstracts the audio output backend so both engines can be
// exercised without hardware. A Player wraps one physical source: it is
// started at most once and discarded after it stops.
type Device interface {
	NewPlayer(r io.Reader) Player
	// SupportsVolume reports whether players honor SetVolume. When
	// false the compatibility engine approximates gain by mute
	// toggling.
	SupportsVolume() bool
}

type Player interface {
	Play()
	Pause()
	SetVolume(v float64)
	Close() error
}

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   source.SampleRate,
			ChannelCount: source.Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

type otoDevice struct {
	ctx *oto.Context
}

// NewOtoDevice opens (or reuses) the process-wide audio context.
func NewOtoDevice() (Device, error) {
	ctx, err := initOto()
	if err != nil {
		return nil, err
	}
	return &otoDevice{ctx: ctx}, nil
}

func (d *otoDevice) NewPlayer(r io.Reader) Player {
	return &otoPlayer{p: d.ctx.NewPlayer(r)}
}

func (d *otoDevice) SupportsVolume() bool { return true }

type otoPlayer struct {
	p *oto.Player
}

func (p *otoPlayer) Play()  { p.p.Play() }
func (p *otoPlayer) Pause() { p.p.Pause() }

func (p *otoPlayer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.p.SetVolume(v)
}

func (p *otoPlayer) Close() error { return p.p.Close() }
