package capture

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Filename returns a unique recording file name for the given time,
// e.g. "recording_20250114_153004_a1b2c3d4.wav".
func Filename(now time.Time) string {
	return fmt.Sprintf("recording_%s_%s.wav", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// WriteWAV encodes float32 samples as a 16-bit PCM WAV file. Samples
// outside [-1, 1] are clamped. A partially written file is removed.
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
