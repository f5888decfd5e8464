package graph

import (
	"os/exec"
	"strconv"

	"github.com/gopxl/beep"
)

// player is a CLI tool that reads raw little-endian signed PCM from stdin
type player struct {
	typ  BackendType
	name string
	bin  string
	args func(f pcmFormat) []string
}

// pcmFormat holds the stream parameters as the strings CLI players expect
type pcmFormat struct {
	rate     string
	channels string
	bits     string
}

func newPCMFormat(f beep.Format) pcmFormat {
	return pcmFormat{
		rate:     strconv.Itoa(int(f.SampleRate)),
		channels: strconv.Itoa(f.NumChannels),
		bits:     strconv.Itoa(f.Precision * 8),
	}
}

// players in detection order
var players = []player{
	{BackendPulse, "pacat", "pacat", func(f pcmFormat) []string {
		return []string{"--raw", "--format=s" + f.bits + "le", "--rate=" + f.rate, "--channels=" + f.channels, "--latency-msec=30", "--playback"}
	}},
	{BackendPipeWire, "pw-cat", "pw-cat", func(f pcmFormat) []string {
		return []string{"--playback", "--format=s" + f.bits, "--rate=" + f.rate, "--channels=" + f.channels, "--latency=30ms", "-"}
	}},
	{BackendALSA, "aplay", "aplay", func(f pcmFormat) []string {
		return []string{"-t", "raw", "-f", "S" + f.bits + "_LE", "-r", f.rate, "-c", f.channels, "-q"}
	}},
	{BackendSoX, "sox", "play", func(f pcmFormat) []string {
		return []string{"-t", "raw", "-e", "signed", "-b", f.bits, "-c", f.channels, "-r", f.rate, "-", "-d", "-q"}
	}},
	{BackendFFplay, "ffplay", "ffplay", func(f pcmFormat) []string {
		return []string{"-nodisp", "-autoexit", "-f", "s" + f.bits + "le", "-ac", f.channels, "-ar", f.rate,
			"-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}
	}},
}

// DetectBackend finds the first installed CLI player and configures it for format
// Priority: pacat > pw-cat > aplay > play (sox) > ffplay
func DetectBackend(format beep.Format) (*BackendConfig, error) {
	return detectBackend(format, exec.LookPath)
}

func detectBackend(format beep.Format, lookPath func(string) (string, error)) (*BackendConfig, error) {
	f := newPCMFormat(format)
	for _, p := range players {
		path, err := lookPath(p.bin)
		if err != nil {
			continue
		}
		return &BackendConfig{Type: p.typ, Name: p.name, Path: path, Args: p.args(f)}, nil
	}
	return nil, ErrNoAudioBackend
}
