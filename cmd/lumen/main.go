// Command lumen opens a window on the configured scene, or renders a fixed number of frames
// headlessly and reports the work the device executed.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/lumen/engine"
	"github.com/Carmen-Shannon/lumen/engine/config"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/scene"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		headless   = flag.Bool("headless", false, "render without a window")
		frames     = flag.Int("frames", 60, "frames to render in headless mode")
		profile    = flag.Bool("profile", false, "log frame and memory statistics")
		printCfg   = flag.Bool("print-config", false, "print the effective configuration and exit")
		saveScene  = flag.String("save-scene", "", "write the start-up scene to a TOML file and exit")
	)
	flag.Parse()

	if err := run(*configPath, *headless, *frames, *profile, *printCfg, *saveScene); err != nil {
		logger.Fatal("lumen failed", "err", err)
	}
}

func run(configPath string, headless bool, frames int, profile, printCfg bool, saveScene string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if headless {
		cfg.Renderer.Headless = true
	}

	if printCfg {
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	if saveScene != "" {
		s, err := scene.FromConfig(cfg.Scene)
		if err != nil {
			return err
		}
		return scene.Save(s, saveScene)
	}

	e, err := engine.NewEngine(cfg, engine.WithProfiling(profile))
	if err != nil {
		return err
	}
	defer e.Close()

	if !cfg.Renderer.Headless {
		return e.Run()
	}

	if frames < 1 {
		return fmt.Errorf("frames must be positive, got %d", frames)
	}
	if err := e.RunFrames(frames); err != nil {
		return err
	}
	if dev, ok := e.Device().(gpu.HeadlessDevice); ok {
		st := dev.Stats()
		logger.Info("headless run finished",
			"frames", frames,
			"lists", st.Lists,
			"commands", st.Commands,
			"draws", st.Draws,
			"dispatches", st.Dispatches,
			"uploads", st.Uploads,
			"presents", st.Presents,
			"releases", st.Releases,
		)
	}
	return nil
}
