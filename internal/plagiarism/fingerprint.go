package plagiarism

import (
	"context"
	"math/bits"

	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/cespare/xxhash/v2"
)

// FingerprintBits is the width of a Fingerprint.
const FingerprintBits = 64

// MaxDistance is the largest possible Hamming distance between two fingerprints.
const MaxDistance = FingerprintBits

// Fingerprint is a 64-bit Simhash of a text's tokens.
type Fingerprint uint64

// ComputeFingerprint builds the Simhash of text. Every token occurrence votes
// +1 or -1 on each bit according to its xxhash; a bit is set only when its
// vote total is strictly positive, so text without tokens hashes to 0.
func ComputeFingerprint(text string) Fingerprint {
	var votes [FingerprintBits]int

	for _, token := range Tokenize(text) {
		h := xxhash.Sum64String(token)
		for i := 0; i < FingerprintBits; i++ {
			if h&(1<<uint(i)) != 0 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}

	var fp uint64
	for i, v := range votes {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}

	return Fingerprint(fp)
}

// HammingDistance counts the differing bits of a and b.
func HammingDistance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// DistanceScore converts a Hamming distance to a score: 100 - floor(d/64*100).
func DistanceScore(distance int) int {
	return clampScore(100 - distance*100/MaxDistance)
}

// NearestFingerprint finds the reference whose fingerprint is closest to
// text's and returns it with the distance. Ties keep the earliest document.
// An empty corpus yields a zero result at MaxDistance.
func NearestFingerprint(text string, docs corpus.Corpus) (models.SimilarityResult, int) {
	result, distance, _ := nearestFingerprint(context.Background(), text, docs)
	return result, distance
}

// ScoreByFingerprint is NearestFingerprint without the distance.
func ScoreByFingerprint(text string, docs corpus.Corpus) models.SimilarityResult {
	result, _ := NearestFingerprint(text, docs)
	return result
}

func nearestFingerprint(ctx context.Context, text string, docs corpus.Corpus) (models.SimilarityResult, int, error) {
	submitted := ComputeFingerprint(text)

	best := -1
	minDistance := MaxDistance
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return models.SimilarityResult{}, MaxDistance, err
		}

		distance := HammingDistance(submitted, ComputeFingerprint(doc.Text))
		if best < 0 || distance < minDistance {
			best = i
			minDistance = distance
		}
	}

	result := models.SimilarityResult{Score: DistanceScore(minDistance)}
	if best >= 0 {
		result.Source = docs[best].ID
	}
	return result, minDistance, nil
}
