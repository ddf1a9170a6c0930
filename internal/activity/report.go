package activity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/stravasummary/internal/models"
)

// FormatReport renders a normalized activity as a Markdown block: a heading,
// the summary bullets and, when present, a splits table.
func FormatReport(s models.NormalizedSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s: %s (%s)\n\n", s.ActivityType, s.ActivityName, s.Date)
	b.WriteString("### Activity Summary\n")
	fmt.Fprintf(&b, "- **Distance**: %.2f km\n", s.Summary.DistanceKm)
	fmt.Fprintf(&b, "- **Moving Time**: %s\n", s.Summary.MovingTime)
	fmt.Fprintf(&b, "- **Average Pace**: %s /km\n", s.Summary.AveragePacePerKm)
	fmt.Fprintf(&b, "- **Calories**: %d\n", s.Summary.Calories)

	if len(s.Splits) == 0 {
		return b.String()
	}

	b.WriteString("\n### Splits Breakdown\n")
	b.WriteString("| Split | Pace (/km) | Distance (km) | Time    | Avg HR | Elev Diff (m) |\n")
	b.WriteString("|-------|------------|---------------|---------|--------|---------------|\n")
	for _, sp := range s.Splits {
		hr := "N/A"
		if sp.AvgHR != nil {
			hr = strconv.Itoa(*sp.AvgHR)
		}
		fmt.Fprintf(&b, "| %-5d | %-10s | %-13s | %-7s | %-6s | %-13s |\n",
			sp.SplitIndex,
			sp.PacePerKm,
			strconv.FormatFloat(sp.DistanceKm, 'f', 2, 64),
			sp.Time,
			hr,
			strconv.FormatFloat(sp.ElevationDiffM, 'f', 1, 64),
		)
	}
	return b.String()
}
