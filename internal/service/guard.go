package service

import "bloglist/internal/domain"

// CanRemove reports whether identity may remove blog. Only the creator may;
// a nil identity never may. Likes are deliberately not gated by this check.
func CanRemove(blog domain.Blog, identity *domain.Identity) bool {
	if identity == nil || identity.UserID == "" {
		return false
	}
	return blog.CreatorID == identity.UserID
}
