// Package capture records microphone audio and turns finished takes
// into WAV files ready for transcription.
package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Recorder captures audio from the default microphone into a float32
// buffer. One Recorder holds one miniaudio context; call Close when the
// application shuts down.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	device    *malgo.Device
	buf       []float32
	recording bool
}

// NewRecorder initializes the audio context. Call Close when done.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Start opens the default capture device and begins accumulating
// samples. It fails if a recording is already running.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.buf = r.buf[:0]
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.abort()
		return fmt.Errorf("initializing capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort()
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
	return nil
}

func (r *Recorder) abort() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

// Stop ends the capture and returns a copy of the recorded samples.
// It returns nil when no recording was running.
func (r *Recorder) Stop() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false

	out := make([]float32, len(r.buf))
	copy(out, r.buf)
	return out
}

// IsRecording reports whether a capture is running.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases the device and the audio context.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
	}
	return nil
}

// onData runs on the miniaudio callback thread with raw little-endian
// float32 frames.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := decodeF32(pSample, frameCount*r.channels)

	r.mu.Lock()
	r.buf = append(r.buf, samples...)
	r.mu.Unlock()
}

func decodeF32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		off := i * 4
		if off+4 > uint32(len(data)) {
			break
		}
		samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(data[off:off+4])))
	}
	return samples
}
