package extract

// Merge combines per-batch results into one unified result. For each category
// the first record seen per case-insensitive key wins; later duplicates across
// batches are dropped, not merged field-by-field. Iteration follows input
// order, so the caller's batch ordering determines which duplicate survives —
// a required, deterministic property, not an incidental detail.
//
// Merge never errors: empty input yields an empty unified result.
func Merge(results []Result) Result {
	var merged Result

	seenEntities := map[string]bool{}
	seenArchitecture := map[string]bool{}
	seenServices := map[string]bool{}
	seenKnowledge := map[string]bool{}

	for _, r := range results {
		for _, e := range r.Entities {
			if k := e.Key(); k != "" && !seenEntities[k] {
				seenEntities[k] = true
				merged.Entities = append(merged.Entities, e)
			}
		}
		for _, a := range r.Architecture {
			if k := a.Key(); k != "" && !seenArchitecture[k] {
				seenArchitecture[k] = true
				merged.Architecture = append(merged.Architecture, a)
			}
		}
		for _, s := range r.Services {
			if k := s.Key(); k != "" && !seenServices[k] {
				seenServices[k] = true
				merged.Services = append(merged.Services, s)
			}
		}
		for _, kn := range r.Knowledge {
			if k := kn.Key(); k != "" && !seenKnowledge[k] {
				seenKnowledge[k] = true
				merged.Knowledge = append(merged.Knowledge, kn)
			}
		}
		merged.Unparsed = append(merged.Unparsed, r.Unparsed...)
	}

	return merged
}
