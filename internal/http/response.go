package http

import (
	"time"

	"bloglist/internal/domain"
)

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type CreatorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type BlogResponse struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Author    string           `json:"author"`
	URL       string           `json:"url"`
	Likes     int64            `json:"likes"`
	User      *CreatorResponse `json:"user,omitempty"`
	CreatedAt string           `json:"created_at"`
}

type UserBlogResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Likes  int64  `json:"likes"`
}

type UserResponse struct {
	ID       string             `json:"id"`
	Username string             `json:"username"`
	Name     string             `json:"name"`
	Blogs    []UserBlogResponse `json:"blogs"`
}

type SnapshotResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func blogToResponse(blog domain.Blog, creator *domain.User) BlogResponse {
	resp := BlogResponse{
		ID:        blog.ID,
		Title:     blog.Title,
		Author:    blog.Author,
		URL:       blog.URL,
		Likes:     blog.Likes,
		CreatedAt: blog.CreatedAt.Format(time.RFC3339),
	}
	if creator != nil {
		resp.User = &CreatorResponse{
			ID:       creator.ID,
			Username: creator.Username,
			Name:     creator.Name,
		}
	}
	return resp
}

func userToResponse(user domain.User, blogs []domain.Blog) UserResponse {
	resp := UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Blogs:    make([]UserBlogResponse, len(blogs)),
	}
	for i := range blogs {
		resp.Blogs[i] = UserBlogResponse{
			ID:     blogs[i].ID,
			Title:  blogs[i].Title,
			Author: blogs[i].Author,
			URL:    blogs[i].URL,
			Likes:  blogs[i].Likes,
		}
	}
	return resp
}
