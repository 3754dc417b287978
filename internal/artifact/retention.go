package artifact

import (
	"sort"
	"time"
)

// evaluateRetention implements the ordered algorithm from spec §4.3:
//  1. Collect candidates: categories_to_clean OR exceeding max_age_days.
//  2. Subtract anything whose tags intersect preserve_tags.
//  3. Sort candidates oldest-first.
//  4. If max_total_size_mib is set and current total exceeds it, extend the
//     candidate set by taking oldest overall until under the limit.
//  5. If max_artifacts_per_category is set, extend the candidate set with
//     each category's oldest excess artifacts until no category holds more
//     than the cap.
//  6. Caller deletes in order, recording per-category counts and freed bytes.
func evaluateRetention(all []Metadata, policy RetentionPolicy, now time.Time) []Metadata {
	cleanSet := make(map[Category]bool, len(policy.CategoriesToClean))
	for _, c := range policy.CategoriesToClean {
		cleanSet[c] = true
	}
	preserve := make(map[string]bool, len(policy.PreserveTags))
	for _, t := range policy.PreserveTags {
		preserve[t] = true
	}

	hasTag := func(m Metadata) bool {
		for _, t := range m.Tags {
			if preserve[t] {
				return true
			}
		}
		return false
	}

	candidateIDs := make(map[string]bool)
	var candidates []Metadata

	for _, m := range all {
		matches := cleanSet[m.Category]
		if policy.MaxAgeDays > 0 {
			age := now.Sub(m.CreatedAt)
			if age > time.Duration(policy.MaxAgeDays)*24*time.Hour {
				matches = true
			}
		}
		if !matches {
			continue
		}
		if hasTag(m) {
			continue
		}
		candidateIDs[m.ArtifactID] = true
		candidates = append(candidates, m)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if policy.MaxTotalSizeMiB > 0 {
		var total int64
		for _, m := range all {
			total += m.SizeBytes
		}
		maxBytes := policy.MaxTotalSizeMiB * 1024 * 1024
		if total > maxBytes {
			remaining := make([]Metadata, len(all))
			copy(remaining, all)
			sort.Slice(remaining, func(i, j int) bool {
				return remaining[i].CreatedAt.Before(remaining[j].CreatedAt)
			})
			for _, m := range remaining {
				if total <= maxBytes {
					break
				}
				if hasTag(m) {
					continue
				}
				if !candidateIDs[m.ArtifactID] {
					candidateIDs[m.ArtifactID] = true
					candidates = append(candidates, m)
				}
				total -= m.SizeBytes
			}
			sort.Slice(candidates, func(i, j int) bool {
				return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
			})
		}
	}

	if policy.MaxArtifactsPerCategory > 0 {
		byCategory := make(map[Category][]Metadata)
		for _, m := range all {
			byCategory[m.Category] = append(byCategory[m.Category], m)
		}
		for _, group := range byCategory {
			sort.Slice(group, func(i, j int) bool {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			})
			excess := len(group) - policy.MaxArtifactsPerCategory
			for i := 0; i < excess; i++ {
				m := group[i]
				if hasTag(m) || candidateIDs[m.ArtifactID] {
					continue
				}
				candidateIDs[m.ArtifactID] = true
				candidates = append(candidates, m)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
	}

	return candidates
}
