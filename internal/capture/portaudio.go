package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// DeviceDescription describes an input-capable device
type DeviceDescription struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	Default           bool    `json:"default"`
}

// PortAudioBackend captures from local input devices through PortAudio
type PortAudioBackend struct {
	mu     sync.Mutex
	closed bool
}

// NewPortAudioBackend initializes the PortAudio library.
// Close must be called to terminate it.
func NewPortAudioBackend() (*PortAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioBackend{}, nil
}

// Open starts a callback stream on the named device, or the default input when name is empty
func (p *PortAudioBackend) Open(opts Options, sink func(samples []float32)) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("PortAudio backend is closed")
	}

	dev, err := findInputDevice(opts.Device)
	if err != nil {
		return nil, err
	}

	if opts.Channels > dev.MaxInputChannels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested",
			dev.Name, dev.MaxInputChannels, opts.Channels)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = opts.Channels
	params.SampleRate = float64(opts.SampleRate)
	if opts.FramesPerBuffer > 0 {
		params.FramesPerBuffer = opts.FramesPerBuffer
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		sink(in)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open stream on %q: %w", dev.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start stream on %q: %w", dev.Name, err)
	}

	return &portAudioHandle{stream: stream}, nil
}

// ListInputDevices returns every device with at least one input channel
func (p *PortAudioBackend) ListInputDevices() ([]DeviceDescription, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var out []DeviceDescription
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		desc := DeviceDescription{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			desc.HostAPI = d.HostApi.Name
		}
		out = append(out, desc)
	}
	return out, nil
}

// Close terminates PortAudio
func (p *PortAudioBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", ErrDeviceNotFound, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

type portAudioHandle struct {
	stream *portaudio.Stream
}

func (h *portAudioHandle) Close() error {
	return errors.Join(h.stream.Stop(), h.stream.Close())
}
