package core

// Dedupe collapses descriptors that materialize to the same repository
// entry. The last descriptor for a key wins; output order follows the
// first appearance of each key.
func Dedupe(descriptors []ArtifactDescriptor) []ArtifactDescriptor {
	index := make(map[string]int, len(descriptors))
	out := make([]ArtifactDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		key := d.Key()
		if i, ok := index[key]; ok {
			out[i] = d
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	return out
}

// ModulesOnly drops descriptors that do not originate from a published
// module coordinate.
func ModulesOnly(descriptors []ArtifactDescriptor) []ArtifactDescriptor {
	out := descriptors[:0:0]
	for _, d := range descriptors {
		if d.Component == ComponentModule {
			out = append(out, d)
		}
	}
	return out
}
