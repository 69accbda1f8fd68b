package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bogem/id3v2/v2"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// Decode turns raw stem bytes into a Track in the shared playback
// format. Format is selected by the extension the source reported.
func Decode(name, ext string, data []byte) (*Track, error) {
	var (
		samples  []int16
		channels int
		rate     int
		title    string
		err      error
	)

	switch ext {
	case ".mp3":
		samples, channels, rate, err = decodeMP3(data)
		title = mp3Title(data)
	case ".wav":
		samples, channels, rate, err = decodeWAV(data)
	case ".flac":
		samples, channels, rate, err = decodeFLAC(data)
	case ".ogg":
		samples, channels, rate, err = decodeOGG(data)
	default:
		return nil, fmt.Errorf("unsupported stem format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding stem %s: %w", name, err)
	}

	pcm := toStereo(samples, channels)
	if rate != SampleRate {
		pcm = resampleStereo(pcm, rate, SampleRate)
	}

	if title == "" {
		title = name
	}
	return &Track{Name: name, Title: title, PCM: pcm}, nil
}

func decodeMP3(data []byte) ([]int16, int, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	// go-mp3 always yields interleaved stereo s16le.
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, err
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, 2, dec.SampleRate(), nil
}

// mp3Title reads the ID3 title tag if one is present.
func mp3Title(data []byte) string {
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{
		Parse:       true,
		ParseFrames: []string{"Title"},
	})
	if err != nil {
		return ""
	}
	defer tag.Close()
	return tag.Title()
}

func decodeWAV(data []byte) ([]int16, int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, 0, errors.New("invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, 0, errors.New("missing WAV format")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth > 16:
			v >>= bitDepth - 16
		case bitDepth < 16:
			v <<= 16 - bitDepth
		}
		samples[i] = clampS16(v)
	}
	return samples, buf.Format.NumChannels, buf.Format.SampleRate, nil
}

func decodeFLAC(data []byte) ([]int16, int, int, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	info := stream.Info
	channels := int(info.NChannels)
	bps := int(info.BitsPerSample)

	samples := make([]int16, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
		n := int(frame.Subframes[0].NSamples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				v := int(frame.Subframes[ch].Samples[i])
				switch {
				case bps > 16:
					v >>= bps - 16
				case bps < 16:
					v <<= 16 - bps
				}
				samples = append(samples, clampS16(v))
			}
		}
	}
	return samples, channels, int(info.SampleRate), nil
}

func decodeOGG(data []byte) ([]int16, int, int, error) {
	floats, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	samples := make([]int16, len(floats))
	for i, s := range floats {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		samples[i] = int16(s * 32767)
	}
	return samples, format.Channels, format.SampleRate, nil
}

func clampS16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// toStereo widens mono to stereo and folds >2 channels down to a
// front-left/front-right pair.
func toStereo(samples []int16, channels int) []int16 {
	switch {
	case channels == Channels:
		return samples
	case channels == 1:
		out := make([]int16, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	case channels > Channels:
		frames := len(samples) / channels
		out := make([]int16, frames*2)
		for f := 0; f < frames; f++ {
			out[f*2] = samples[f*channels]
			out[f*2+1] = samples[f*channels+1]
		}
		return out
	default:
		return nil
	}
}

// resampleStereo linearly interpolates interleaved stereo PCM from
// srcRate to dstRate. Linear is fine here: stems are pre-rendered music,
// not measurement data.
func resampleStereo(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 {
		return pcm
	}
	srcFrames := len(pcm) / Channels
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		dstFrames = 1
	}

	out := make([]int16, dstFrames*Channels)
	step := float64(srcFrames) / float64(dstFrames)
	for f := 0; f < dstFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		frac := pos - float64(i)
		j := i + 1
		if j >= srcFrames {
			j = srcFrames - 1
		}
		for ch := 0; ch < Channels; ch++ {
			a := float64(pcm[i*Channels+ch])
			b := float64(pcm[j*Channels+ch])
			out[f*Channels+ch] = int16(a + (b-a)*frac)
		}
	}
	return out
}
