package plagiarism

import (
	"github.com/RishiKendai/aegis-local/internal/models"
)

// clampScore keeps a score inside [0,100]
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// GetRiskLevel returns risk level based on a 0..100 score
func GetRiskLevel(score int) models.Risk {
	if score < 30 {
		return models.RiskClean
	} else if score < 60 {
		return models.RiskSuspicious
	} else if score < 85 {
		return models.RiskHighlySuspicious
	}
	return models.RiskNearCopy
}

// combine picks the stronger of the two local results and names the scorer
// that produced it. On equal scores the token-set match is reported.
func combine(tokenSet, fingerprint models.SimilarityResult) (models.SimilarityResult, models.Provider) {
	if fingerprint.Score > tokenSet.Score {
		return fingerprint, models.ProviderSimhash
	}
	return tokenSet, models.ProviderTokenSet
}
