package graph

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/speaker"
	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/core"
	"github.com/lixenwraith/beatpad/parameter"
)

// Output drives a Context at device pace
type Output interface {
	Name() string
	// Start attaches the context and begins pulling audio
	Start(c *Context) error
	// Stop detaches; safe to call multiple times
	Stop()
	// Failed is closed when the output dies after Start
	Failed() <-chan struct{}
}

// SpeakerOutput plays through the beep speaker (oto)
type SpeakerOutput struct {
	running atomic.Bool
	failed  chan struct{}
}

// NewSpeakerOutput creates an output bound to the system audio device
func NewSpeakerOutput() *SpeakerOutput {
	return &SpeakerOutput{failed: make(chan struct{})}
}

func (o *SpeakerOutput) Name() string { return "speaker" }

func (o *SpeakerOutput) Start(c *Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("speaker output already running")
	}
	rate := c.SampleRate()
	if err := speaker.Init(rate, rate.N(parameter.AudioSpeakerBuffer)); err != nil {
		o.running.Store(false)
		return fmt.Errorf("speaker init: %w", err)
	}
	c.startNotifier()
	speaker.Play(c)
	return nil
}

func (o *SpeakerOutput) Stop() {
	if o.running.CompareAndSwap(true, false) {
		speaker.Clear()
	}
}

func (o *SpeakerOutput) Failed() <-chan struct{} { return o.failed }

// pump pulls fixed blocks from the context on a ticker and writes them as s16le
type pump struct {
	out    io.Writer
	stop   chan struct{}
	done   chan struct{}
	failed chan struct{}
	once   sync.Once
	errs   chan error
}

func newPump(out io.Writer) *pump {
	return &pump{
		out:    out,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
		errs:   make(chan error, 1),
	}
}

func (p *pump) run(c *Context) {
	defer close(p.done)

	ticker := time.NewTicker(parameter.AudioBufferDuration)
	defer ticker.Stop()

	frames := c.SampleRate().N(parameter.AudioBufferDuration)
	mix := make([][2]float64, frames)
	outBytes := make([]byte, frames*parameter.AudioBytesPerFrame)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			c.Stream(mix)
			floatToBytes(mix, outBytes)
			if _, err := p.out.Write(outBytes); err != nil {
				select {
				case p.errs <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				close(p.failed)
				return
			}
		}
	}
}

func (p *pump) signal() {
	p.once.Do(func() { close(p.stop) })
}

func (p *pump) halt() {
	p.signal()
	<-p.done
}

// PipeOutput streams raw PCM into a CLI player found by DetectBackend
type PipeOutput struct {
	log     logging.LeveledLogger
	backend *BackendConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pump    *pump

	running atomic.Bool
	wg      sync.WaitGroup
	failed  chan struct{}
	fail    sync.Once
}

// NewPipeOutput creates a pipe output; the backend is detected on Start
func NewPipeOutput(log logging.LeveledLogger) *PipeOutput {
	return &PipeOutput{log: log, failed: make(chan struct{})}
}

func (o *PipeOutput) Name() string {
	if o.backend != nil {
		return "pipe:" + o.backend.Name
	}
	return "pipe"
}

func (o *PipeOutput) Start(c *Context) error {
	if o.running.Load() {
		return fmt.Errorf("pipe output already running")
	}

	backend, err := DetectBackend(c.Format())
	if err != nil {
		return err
	}
	o.backend = backend

	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%s stdin: %w", backend.Name, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("start %s: %w", backend.Name, err)
	}
	o.cmd = cmd
	o.stdin = stdin

	o.wg.Add(1)
	core.Go(o.monitorProcess)

	o.pump = newPump(stdin)
	o.running.Store(true)
	c.startNotifier()
	core.Go(func() { o.pump.run(c) })

	o.wg.Add(1)
	core.Go(o.monitorPump)
	return nil
}

// monitorProcess watches for subprocess exit
func (o *PipeOutput) monitorProcess() {
	defer o.wg.Done()
	if err := o.cmd.Wait(); err != nil && o.running.Load() {
		o.log.Warnf("%s exited: %v", o.backend.Name, err)
		o.markFailed()
	}
}

// monitorPump watches for pipe write errors
func (o *PipeOutput) monitorPump() {
	defer o.wg.Done()
	select {
	case err := <-o.pump.errs:
		if o.running.Load() {
			o.log.Warnf("%s: %v", o.backend.Name, err)
			o.markFailed()
		}
	case <-o.pump.done:
	}
}

func (o *PipeOutput) markFailed() {
	o.fail.Do(func() { close(o.failed) })
}

func (o *PipeOutput) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	// Signal first so the write error from closing stdin is not reported as a failure
	o.pump.signal()
	o.stdin.Close()
	o.pump.halt()
	if o.cmd != nil && o.cmd.Process != nil {
		o.cmd.Process.Kill()
	}
	o.wg.Wait()
}

func (o *PipeOutput) Failed() <-chan struct{} { return o.failed }

// NullOutput advances the clock in real time and discards the audio
// It keeps scheduling and ended notifications alive when no device is available
type NullOutput struct {
	pump    *pump
	running atomic.Bool
}

// NewNullOutput creates a silent output
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

func (o *NullOutput) Name() string { return "null" }

func (o *NullOutput) Start(c *Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("null output already running")
	}
	o.pump = newPump(io.Discard)
	c.startNotifier()
	core.Go(func() { o.pump.run(c) })
	return nil
}

func (o *NullOutput) Stop() {
	if o.running.CompareAndSwap(true, false) {
		o.pump.halt()
	}
}

func (o *NullOutput) Failed() <-chan struct{} { return nil }
