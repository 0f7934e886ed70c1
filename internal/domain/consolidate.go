package domain

import "sort"

// ConsolidateByTarget merges qualifying clusters by logical target. A target
// with two or more clusters in the same run gets one roundup context instead
// of N separate stories, keeping per-target output bounded per run. Output
// order is deterministic (sorted by target).
func ConsolidateByTarget(clusters []Cluster, domainName, categoryLabel string) []StoryContext {
	byTarget := make(map[string][]Cluster)
	for _, c := range clusters {
		byTarget[c.TargetID] = append(byTarget[c.TargetID], c)
	}

	targets := make([]string, 0, len(byTarget))
	for t := range byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	contexts := make([]StoryContext, 0, len(targets))
	for _, target := range targets {
		group := byTarget[target]
		contexts = append(contexts, StoryContext{
			Domain:        domainName,
			Kind:          "cluster",
			TargetID:      target,
			CategoryLabel: categoryLabel,
			Priority:      PriorityStandard,
			Clusters:      group,
			Roundup:       len(group) >= 2,
		})
	}
	return contexts
}
