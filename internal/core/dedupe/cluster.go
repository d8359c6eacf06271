package dedupe

import "github.com/keeperhq/keeper/internal/core/model"

// Cluster groups records into duplicate clusters: the connected components
// of the graph whose edges are pairwise MATCH results. UNSURE and NO_MATCH
// pairs contribute no edge. Each record lands in at most one cluster, and
// singleton components are not clusters at all.
func Cluster(records []model.ContactRecord, matches []model.MatchResult) [][]model.ContactRecord {
	if len(records) == 0 {
		return nil
	}

	recordMap := make(map[string]model.ContactRecord, len(records))
	adj := make(map[string][]string, len(records))
	for _, r := range records {
		recordMap[r.Key()] = r
	}

	for _, m := range matches {
		if m.Decision != model.DecisionMatch {
			continue
		}
		if _, ok := recordMap[m.RecordA]; !ok {
			continue
		}
		if _, ok := recordMap[m.RecordB]; !ok {
			continue
		}
		adj[m.RecordA] = append(adj[m.RecordA], m.RecordB)
		adj[m.RecordB] = append(adj[m.RecordB], m.RecordA)
	}

	visited := make(map[string]bool, len(records))
	var clusters [][]model.ContactRecord

	// Walk records in input order so cluster membership is deterministic.
	for _, r := range records {
		if visited[r.Key()] {
			continue
		}

		var component []model.ContactRecord
		queue := []string{r.Key()}
		visited[r.Key()] = true
		for len(queue) > 0 {
			key := queue[0]
			queue = queue[1:]
			component = append(component, recordMap[key])
			for _, next := range adj[key] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}

		if len(component) >= 2 {
			clusters = append(clusters, component)
		}
	}

	return clusters
}
