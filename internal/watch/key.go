package watch

// StateKey derives the storage key for a topic. An explicit Key wins; otherwise the key is
// the digest of the canonical form (keyword, category), independent of how the topic was
// declared.
func StateKey(h Hasher, topic Topic) string {
	if topic.Key != "" {
		return topic.Key
	}
	return h.Sum(topic.Keyword, topic.Category)
}
