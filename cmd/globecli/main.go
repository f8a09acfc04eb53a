// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"os"

	units "github.com/docker/go-units"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("pretty", false, "Indent the output")
)

type deviceReport struct {
	core.PhysicalDeviceInfo
	HumanMemory   string
	DisplayTiming bool
}

func report(infos []core.PhysicalDeviceInfo) []deviceReport {
	out := make([]deviceReport, 0, len(infos))
	for _, info := range infos {
		out = append(out, deviceReport{
			PhysicalDeviceInfo: info,
			HumanMemory:        units.BytesSize(float64(info.Memory)),
			DisplayTiming:      info.HasExtension(present.DisplayTimingExtension),
		})
	}
	return out
}

func main() {
	flag.Parse()

	cfg := core.InstanceConfiguration{
		Name:       "globecli",
		DebugMode:  *debug,
		Extensions: []string{},
		Layers:     []string{},
	}

	coreInstance, err := core.NewVulkanInstance(nil, cfg)
	if err != nil {
		log.WithError(err).Fatal("instance")
	}
	defer coreInstance.Destroy()

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report(coreInstance.PhysicalDevicesInfo())); err != nil {
		log.WithError(err).Error("encoding")
	}
}
