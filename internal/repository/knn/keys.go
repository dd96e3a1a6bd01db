package knn

import (
	"strconv"

	"github.com/kailas-cloud/suggest/internal/domain"
)

// IndexName is the default FT index name for a category. Published indexes append a version.
func IndexName(category string) string {
	return domain.KeyPrefix + category + ":idx"
}

func versionedName(base, version string) string {
	return base + ":" + version
}

func docPrefix(category, version string) string {
	return domain.KeyPrefix + "doc:" + category + ":" + version + ":"
}

func docKey(category, version string, pos int) string {
	return docPrefix(category, version) + strconv.Itoa(pos)
}

// currentKey holds the publication a category's searchers are bound to.
func currentKey(category string) string {
	return domain.KeyPrefix + category + ":current"
}
