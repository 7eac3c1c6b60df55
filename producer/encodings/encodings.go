// Package encodings computes simulcast layers from captured dimensions.
package encodings

import (
	"sort"
)

// Encoding describes one simulcast layer.
type Encoding struct {
	RID                   string  `json:"rid"`
	ScaleResolutionDownBy float64 `json:"scaleResolutionDownBy"`
	MaxBitrate            int     `json:"maxBitrate"`
	Dtx                   bool    `json:"dtx,omitempty"`
}

type layer struct {
	scale      float64
	maxBitrate int
}

// profiles are keyed by the longest side of the capture.
var profiles = map[int][]layer{
	320: {
		{1, 150000},
	},
	640: {
		{2, 150000},
		{1, 500000},
	},
	1280: {
		{4, 150000},
		{2, 500000},
		{1, 1200000},
	},
	1920: {
		{6, 150000},
		{3, 500000},
		{1, 3500000},
	},
	3840: {
		{12, 150000},
		{6, 500000},
		{1, 10000000},
	},
}

var rids = []string{"q", "h", "f"}

func profileSizes() []int {
	sizes := make([]int, 0, len(profiles))

	for size := range profiles {
		sizes = append(sizes, size)
	}

	sort.Ints(sizes)

	return sizes
}

// ForDimensions returns layers ordered from lowest to highest quality. The
// profile is the largest one whose size does not exceed the longest side.
// Screen shares enable dtx on every layer so static content costs nothing.
func ForDimensions(width, height int, screenShare bool) []Encoding {
	size := width
	if height > size {
		size = height
	}

	sizes := profileSizes()
	chosen := sizes[0]

	for _, s := range sizes {
		if s <= size {
			chosen = s
		}
	}

	layers := profiles[chosen]
	ret := make([]Encoding, len(layers))

	for i, l := range layers {
		ret[i] = Encoding{
			RID:                   rids[i],
			ScaleResolutionDownBy: l.scale,
			MaxBitrate:            l.maxBitrate,
			Dtx:                   screenShare,
		}
	}

	return ret
}
