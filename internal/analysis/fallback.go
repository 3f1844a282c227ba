package analysis

import (
	"strings"
)

// Constants of the digest-seeded description. They are part of the output
// contract: changing any of them changes the description for every image.
const (
	fallbackConfidenceBase   = 0.5
	fallbackConfidenceStep   = 0.01
	fallbackConfidenceSpread = 40
	fallbackConfidenceMin    = 0.5
	fallbackConfidenceMax    = 0.9
)

var fallbackDescriptors = []string{
	"medical x-ray image showing bone structures",
	"radiographic image of anatomical structures",
	"x-ray scan displaying skeletal anatomy",
	"medical radiograph with visible bone tissue",
	"diagnostic x-ray image of body structures",
}

// qualifier is appended when seed % modulus < below.
type qualifier struct {
	modulus uint64
	below   uint64
	text    string
}

var fallbackQualifiers = []qualifier{
	{modulus: 7, below: 3, text: "clear bone definition"},
	{modulus: 11, below: 4, text: "normal joint spacing"},
	{modulus: 13, below: 2, text: "possible irregularities"},
	{modulus: 17, below: 3, text: "soft tissue visible"},
}

// FallbackVision derives a description and confidence from the digest alone.
func FallbackVision(d ImageDigest) Vision {
	h := d.Seed()

	description := fallbackDescriptors[h%uint64(len(fallbackDescriptors))]

	var details []string
	for _, q := range fallbackQualifiers {
		if h%q.modulus < q.below {
			details = append(details, q.text)
		}
	}
	if len(details) > 0 {
		description += " with " + strings.Join(details, ", ")
	}

	confidence := fallbackConfidenceBase + float64(h%fallbackConfidenceSpread)*fallbackConfidenceStep

	return Vision{
		Description: description,
		Confidence:  clamp(confidence, fallbackConfidenceMin, fallbackConfidenceMax),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
