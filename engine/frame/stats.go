package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Stats are cumulative frame counters.
type Stats struct {
	FramesRun         uint64
	FramesDrawn       uint64
	Commits           uint64
	SkippedSubmits    uint64
	ForcedSubmits     uint64
	Walks             uint64
	LayoutPasses      uint64
	ReportedErrors    uint64
	DeviceLosses      int
	Rebuilds          int
	RebuildFailures   int
	LastFrameDuration time.Duration
}

// WriteTable renders the counters as a table.
func (s Stats) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Counter", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	rows := [][]string{
		{"frames run", fmt.Sprint(s.FramesRun)},
		{"frames drawn", fmt.Sprint(s.FramesDrawn)},
		{"render walks", fmt.Sprint(s.Walks)},
		{"commits", fmt.Sprint(s.Commits)},
		{"skipped submissions", fmt.Sprint(s.SkippedSubmits)},
		{"forced submissions", fmt.Sprint(s.ForcedSubmits)},
		{"layout passes", fmt.Sprint(s.LayoutPasses)},
		{"reported errors", fmt.Sprint(s.ReportedErrors)},
		{"device losses", fmt.Sprint(s.DeviceLosses)},
		{"rebuilds", fmt.Sprint(s.Rebuilds)},
		{"rebuild failures", fmt.Sprint(s.RebuildFailures)},
		{"last frame", s.LastFrameDuration.String()},
	}
	table.AppendBulk(rows)
	table.Render()
}
