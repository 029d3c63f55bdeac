package service

import (
	"cmp"
	"slices"

	"bloglist/internal/domain"
)

// ByLikesDescending returns a copy of blogs sorted by likes, highest first.
// Blogs with equal likes keep their relative input order, which for
// repository listings is creation order.
func ByLikesDescending(blogs []domain.Blog) []domain.Blog {
	sorted := slices.Clone(blogs)
	slices.SortStableFunc(sorted, func(a, b domain.Blog) int {
		return cmp.Compare(b.Likes, a.Likes)
	})
	return sorted
}
