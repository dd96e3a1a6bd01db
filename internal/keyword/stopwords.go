package keyword

// DefaultStopwords returns the stopword list used when a category configures none:
// common Korean particles and connectives plus English function words.
func DefaultStopwords() []string {
	words := []string{
		"그", "그리고", "그러나", "하지만", "또한", "등", "등의", "이", "있습니다", "수", "있는", "하는", "할", "합니다", "따라",
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through",
		"during", "before", "after", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
	}
	return words
}
