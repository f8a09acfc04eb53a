// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"math"
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/present"
)

// ErrTimeout is returned when a fence or acquire wait runs out.
var ErrTimeout = errors.New("wait timed out")

// check maps a vk.Result onto the errors the presentation engine
// understands, annotated with the call that produced it. Incomplete
// is a partial enumeration, not a failure.
func check(call string, r vk.Result) error {
	switch r {
	case vk.Success, vk.Incomplete:
		return nil
	case vk.Suboptimal:
		return errors.Wrap(present.ErrSuboptimal, call)
	case vk.ErrorOutOfDate:
		return errors.Wrap(present.ErrOutOfDate, call)
	case vk.ErrorDeviceLost:
		return errors.Wrap(present.ErrDeviceLost, call)
	case vk.Timeout, vk.NotReady:
		return errors.Wrap(ErrTimeout, call)
	}
	if err := vk.Error(r); err != nil {
		return errors.Wrap(err, call)
	}
	return nil
}

// timeout converts d for the driver, zero meaning forever.
func timeout(d time.Duration) uint64 {
	if d <= 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}
