package qa

import "github.com/pageproof/pageproof/internal/config"

// SelectEvidence walks candidates in descending score order and admits them
// greedily until quality decays. A candidate is rejected when its score falls
// below MinAbsoluteScore, below RelativeScoreThreshold of the top score, or
// below DropRatioStop of the previously admitted score. The scan stops at the
// first rejection so a weak candidate never lets weaker ones in behind it.
// MaxEvidenceItems > 0 caps the result.
func SelectEvidence(candidates []*Candidate, cfg config.EvidenceConfig) []*Candidate {
	if len(candidates) == 0 {
		return nil
	}

	top := candidates[0].CombinedScore
	var selected []*Candidate
	prev := 0.0
	for _, c := range candidates {
		if c.CombinedScore < cfg.MinAbsoluteScore {
			break
		}
		if top > 0 && c.CombinedScore/top < cfg.RelativeScoreThreshold {
			break
		}
		if len(selected) > 0 && prev > 0 && c.CombinedScore/prev < cfg.DropRatioStop {
			break
		}
		selected = append(selected, c)
		prev = c.CombinedScore
		if cfg.MaxEvidenceItems > 0 && len(selected) >= cfg.MaxEvidenceItems {
			break
		}
	}
	return selected
}
