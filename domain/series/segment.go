package series

// SegmentRow is one per-file extraction result; several rows make up a run.
type SegmentRow struct {
	Run     int
	Segment int
	File    string
	Value   float64
	Error   float64
	Weight  float64
}

// MetricDecl is one entry of metrics.conf.
type MetricDecl struct {
	Name      string
	Histogram string
	Method    string
	Lo        float64
	Hi        float64
	HasRange  bool
}

// Threshold is a declared acceptance range for a metric. Unbounded sides are
// infinite.
type Threshold struct {
	Metric string
	Lo     float64
	Hi     float64
}

// Contains reports whether v lies within the closed range.
func (t Threshold) Contains(v float64) bool {
	return v >= t.Lo && v <= t.Hi
}

// LadderHealth is the per-run hardware health context.
type LadderHealth struct {
	Run          int
	DeadCount    int
	HotCount     int
	Median       float64
	TotalLadders int
}

// DefaultTotalLadders is used when the health table leaves the column empty.
const DefaultTotalLadders = 112
