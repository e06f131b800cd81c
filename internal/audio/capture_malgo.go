package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures from the default input through miniaudio.
type MalgoDevice struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoDevice returns a device whose audio context is created on first use.
func NewMalgoDevice() *MalgoDevice {
	return &MalgoDevice{}
}

// Open implements Device.
func (d *MalgoDevice) Open(sampleRate int, onData func(pcm []byte)) (Stream, error) {
	ctx, err := d.context()
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			frame := make([]byte, len(input))
			copy(frame, input)
			onData(frame)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, classifyDeviceError(err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, classifyDeviceError(err)
	}
	return &malgoStream{device: device}, nil
}

// Close frees the audio context.
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	return err
}

func (d *MalgoDevice) context() (*malgo.AllocatedContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx, nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	d.ctx = ctx
	return ctx, nil
}

type malgoStream struct {
	once   sync.Once
	device *malgo.Device
}

func (s *malgoStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.device.Stop()
		s.device.Uninit()
	})
	return err
}

func classifyDeviceError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
}
