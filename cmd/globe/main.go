// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/xlab/closer"

	"github.com/devblok/globe/core"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

var (
	configFile = flag.String("config", "", "dotenv file layered over the built in defaults")
	backend    = flag.String("backend", "", "Window backend, sdl or glfw")
	assets     = flag.String("assets", "", "kar archive to take the window icon from")
)

// StaticResources holds the configuration defaults
var StaticResources = packr.NewBox("./resources")

func main() {
	flag.Parse()
	defer closer.Close()

	defaults, err := StaticResources.FindString("defaults.env")
	if err != nil {
		log.WithError(err).Fatal("defaults missing")
	}
	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	cfg, err := core.LoadConfiguration(defaults, files...)
	if err != nil {
		log.WithError(err).Fatal("bad configuration")
	}
	if *debug {
		cfg.Instance.DebugMode = true
	}
	if *backend != "" {
		cfg.Window.Backend = *backend
	}
	logger := core.NewLogger(cfg.Log)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.WithError(err).Fatal("cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.WithError(err).Fatal("cpu profile")
		}
		closer.Bind(pprof.StopCPUProfile)
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			logger.WithError(err).Fatal("trace")
		}
		if err := trace.Start(f); err != nil {
			logger.WithError(err).Fatal("trace")
		}
		closer.Bind(trace.Stop)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	if *assets != "" {
		if err := a.loadIcon(*assets); err != nil {
			logger.WithError(err).Warn("window icon not set")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	closer.Bind(func() {
		cancel()
		<-stopped
		a.destroy()
		logger.Info("shut down")
	})

	a.run(ctx, cancel)
	close(stopped)
}
