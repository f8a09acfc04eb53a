// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux

package present

// Display timing is only exposed on platforms reporting CLOCK_MONOTONIC.
func monotonicNow() uint64 {
	return 0
}
