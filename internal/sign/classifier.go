// Package sign is the boundary to the on-device ASL letter classifier.
// The model itself runs on the phone; the server only sees its 26-way
// confidence vector and reduces it to a thresholded top-1 letter.
package sign

import (
	"errors"
	"fmt"
	"strings"
)

// Letters is the classifier's output order.
const Letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultThreshold is the minimum confidence for a prediction to count.
const DefaultThreshold float32 = 0.6

var ErrVectorLength = errors.New("confidence vector must have one entry per letter")

// Prediction is the top-1 classifier output.
type Prediction struct {
	Letter     string
	Confidence float32
}

// TopLetter returns the most confident letter. ok is false when the best
// confidence is below threshold.
func TopLetter(confidences []float32, threshold float32) (p Prediction, ok bool, err error) {
	if len(confidences) != len(Letters) {
		return Prediction{}, false, fmt.Errorf("%w: got %d", ErrVectorLength, len(confidences))
	}

	best := 0
	for i := 1; i < len(confidences); i++ {
		if confidences[i] > confidences[best] {
			best = i
		}
	}

	p = Prediction{Letter: string(Letters[best]), Confidence: confidences[best]}
	return p, p.Confidence >= threshold, nil
}

// Normalize case-folds and trims a submitted letter.
func Normalize(letter string) string {
	return strings.ToUpper(strings.TrimSpace(letter))
}
