// distribute_info inspects a platform's devices and the strategy a given
// selection produces.
//
// Examples:
//
//	distribute_info -platform simulated:cpu=1,gpu=4
//	distribute_info -platform simulated:gpu=2 -type gpu -select all
//	distribute_info -platform xla: -type gpu -select 0,1
//
// Without -platform it uses the DISTRIBUTE_PLATFORM environment variable,
// falling back to the first registered platform.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/distribute"
	"github.com/gomlx/distribute/platform"
	_ "github.com/gomlx/distribute/platform/simulated"
	_ "github.com/gomlx/distribute/platform/xla"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagPlatform = flag.String("platform", "",
		"Platform configuration, as \"<platform_name>:<platform_config>\". "+
			"Default is taken from the "+platform.EnvPlatformConfig+" environment variable.")
	flagType = flag.String("type", "gpu", "Device type to select: \"cpu\" or \"gpu\".")
	flagSelect = flag.String("select", "all",
		"Comma-separated device identifiers to select: indices, the aliases "+
			"first/second/third/fourth, or \"all\".")
	flagGrowth = flag.Bool("growth", false, "Set the GPU memory-growth flag before building the strategy.")
)

// parseIdentifiers splits the -select flag into Select identifiers, turning
// numeric entries into int indices.
func parseIdentifiers(list string) []any {
	var identifiers []any
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if idx, err := strconv.Atoi(entry); err == nil {
			identifiers = append(identifiers, idx)
		} else {
			identifiers = append(identifiers, entry)
		}
	}
	return identifiers
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	var p platform.Platform
	if *flagPlatform != "" {
		p = must.M1(platform.NewWithConfig(*flagPlatform))
	} else {
		p = must.M1(platform.New())
	}
	fmt.Printf("Platform: %s\n", p.Name())
	for _, deviceType := range []platform.DeviceType{platform.CPU, platform.GPU} {
		devices, err := p.ListPhysicalDevices(deviceType)
		if err != nil {
			fmt.Printf("  %s devices: error: %v\n", deviceType, err)
			continue
		}
		fmt.Printf("  %s devices (%d):\n", deviceType, len(devices))
		for _, device := range devices {
			fmt.Printf("    %s\n", device.Name)
		}
	}

	dm := distribute.New(p)
	dm.SetGrowth(*flagGrowth)
	must.M(dm.Select(platform.DeviceType(strings.ToLower(*flagType)), parseIdentifiers(*flagSelect)...))
	fmt.Printf("\nSelected %d device(s):\n", len(dm.Devices()))
	for _, device := range dm.Devices() {
		fmt.Printf("  %s\n", device.Name)
	}
	numReplicas := must.M1(dm.NumReplicas())
	shape := "single-device"
	if numReplicas >= 2 {
		shape = "mirrored"
	}
	fmt.Printf("Strategy: %s, %d replica(s)\n", shape, numReplicas)
}
