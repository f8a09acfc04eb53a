// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(safeString("VK_KHR_surface"), qt.Equals, "VK_KHR_surface\x00")
	c.Assert(safeString("VK_KHR_surface\x00"), qt.Equals, "VK_KHR_surface\x00")
	c.Assert(safeStrings([]string{"a", "b\x00"}), qt.DeepEquals, []string{"a\x00", "b\x00"})
}

func TestDedupe(t *testing.T) {
	c := qt.New(t)
	in := []string{"a", "b", "a\x00", "c", "b"}
	c.Assert(dedupe(in), qt.DeepEquals, []string{"a", "b", "c"})
	c.Assert(in[0], qt.Equals, "a")
}
