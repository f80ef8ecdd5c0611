package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// defaultWatermark returns the executable's modification time, standing
// in for the agent's install time. Changes older than the watermark are
// ignored so pre-existing history doesn't flood the other store on first
// run.
func defaultWatermark() time.Time {
	exe, err := os.Executable()
	if err != nil {
		return time.Now()
	}
	info, err := os.Stat(exe)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

// parseSince parses a natural-language watermark like "yesterday" or
// "last monday at 9am".
func parseSince(s string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand %q as a point in time", s)
	}
	return r.Time, nil
}
