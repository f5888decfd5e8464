package main

import (
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/lixenwraith/beatpad/asset"
	"github.com/lixenwraith/beatpad/audio"
	"github.com/lixenwraith/beatpad/core"
	"github.com/lixenwraith/beatpad/midi"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/service"
	"github.com/lixenwraith/beatpad/status"
	"github.com/lixenwraith/beatpad/store"
)

//go:embed default.toml
var defaultCatalog []byte

var (
	catalogFlag  = flag.String("catalog", "", "Pack catalog TOML file (default: built-in synth catalog)")
	assetsFlag   = flag.String("assets", "", "Asset root directory (overrides BEATPAD_ASSET_ROOT)")
	outputFlag   = flag.String("output", "", "Audio output: speaker, pipe, null")
	volumeFlag   = flag.Int("volume", -1, "Master volume 0-100")
	midiFlag     = flag.Bool("midi", false, "Listen for pad hits on a MIDI input")
	midiPortFlag = flag.String("midi-port", "", "MIDI input port name (default: first available)")
	listMidiFlag = flag.Bool("list-midi", false, "List MIDI input ports and exit")
	logFlag      = flag.String("log", "", "Write logs to this file (default: discarded)")
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	flag.Parse()

	if *listMidiFlag {
		for _, name := range midi.Ports() {
			fmt.Println(name)
		}
		return
	}

	cfg := audio.LoadConfig()
	if *assetsFlag != "" {
		cfg.AssetRoot = *assetsFlag
	}
	switch *outputFlag {
	case "":
	case audio.OutputSpeaker, audio.OutputPipe, audio.OutputNull:
		cfg.Output = *outputFlag
	default:
		fmt.Fprintf(os.Stderr, "Unknown output %q\n", *outputFlag)
		os.Exit(2)
	}
	if *volumeFlag >= 0 {
		cfg.MasterVolume = min(float64(*volumeFlag), 100) / 100
	}

	var logOut io.Writer = io.Discard
	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	loggers := cfg.Loggers(logOut)

	catalog, err := loadCatalog(*catalogFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	reg := status.NewRegistry()
	hub := service.NewHub()
	services := []service.Service{
		store.NewService("beatpad", catalog),
		audio.NewService(catalog, newResolver(cfg)),
	}
	if *midiFlag {
		services = append(services, midi.NewService(*midiPortFlag, midi.DefaultNoteMap(padCount)))
	}
	for _, svc := range services {
		if err := hub.Register(svc); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register %s: %v\n", svc.Name(), err)
			os.Exit(1)
		}
	}

	if err := hub.InitAll(cfg, loggers, reg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := hub.StartAll(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		_ = hub.StopAll()
		os.Exit(1)
	}
	defer hub.StopAll()

	app, err := newApp(hub, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		return
	}
	core.OnCrash(app.screen.Fini)
	defer app.screen.Fini()

	app.run()
}

func loadCatalog(path string) (*pack.Catalog, error) {
	if path == "" {
		return pack.Parse(defaultCatalog)
	}
	return pack.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// newResolver serves plain paths from the asset root plus file, http(s) and synth references
func newResolver(cfg *audio.Config) asset.Resolver {
	mux := asset.NewMux(asset.NewFSResolver(cfg.AssetRoot))
	mux.Handle("file", asset.FileResolver{})
	web := asset.NewHTTPResolver(10 * time.Second)
	mux.Handle("http", web)
	mux.Handle("https", web)
	mux.Handle("synth", &asset.SynthResolver{SampleRate: beep.SampleRate(cfg.SampleRate)})
	return mux
}
