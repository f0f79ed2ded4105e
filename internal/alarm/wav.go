package alarm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"daily-tracker/internal/logging"
)

const (
	SampleRate = 8000
	// Gain matches the quiet beep level of the web client.
	Gain = 0.1
)

// WAVDevice synthesizes sine tones into 16-bit mono PCM instead of playing
// them, so a pattern can be sent as an audio file.
type WAVDevice struct {
	mu      sync.Mutex
	samples []int16
}

func NewWAVDevice() *WAVDevice {
	return &WAVDevice{}
}

func (d *WAVDevice) Tone(ctx context.Context, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := int(step.Duration.Seconds() * SampleRate)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		var v float64
		if step.FrequencyHz > 0 {
			v = Gain * math.Sin(2*math.Pi*step.FrequencyHz*float64(i)/SampleRate)
		}
		d.samples = append(d.samples, int16(v*math.MaxInt16))
	}
	return nil
}

func (d *WAVDevice) Silence() {}

// Samples returns the number of rendered samples.
func (d *WAVDevice) Samples() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}

// Bytes encodes everything rendered so far as a RIFF/WAVE file.
func (d *WAVDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	const (
		channels      = 1
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)
	dataSize := uint32(len(d.samples) * blockAlign)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	_ = binary.Write(&buf, binary.LittleEndian, d.samples)
	return buf.Bytes()
}

// Render plays the named pattern passes times into a WAV file, with the
// usual pause between passes.
func Render(name string, passes int) ([]byte, error) {
	if passes < 1 {
		return nil, errors.New("render: passes must be positive")
	}
	device := NewWAVDevice()
	player := NewPlayer(device, logging.Discard())

	played := 0
	if err := player.Play(name, func() bool {
		played++
		return played < passes
	}); err != nil {
		return nil, err
	}
	player.Wait()
	return device.Bytes(), nil
}
