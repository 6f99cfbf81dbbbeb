package database

import (
	"context"
	"fmt"
)

func (db *PgRepository) ListBlogs(ctx context.Context) ([]Blog, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT id, title, content, category, author_id, author_name, published_at, updated_at "+
			"FROM blogs ORDER BY published_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	var blogs []Blog
	for rows.Next() {
		var b Blog
		if err := rows.Scan(
			&b.Id,
			&b.Title,
			&b.Content,
			&b.Category,
			&b.AuthorId,
			&b.AuthorName,
			&b.PublishedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}

	return blogs, rows.Err()
}

func (db *PgRepository) CreateBlog(ctx context.Context, blog Blog) error {
	_, err := db.q.ExecContext(ctx,
		"INSERT INTO blogs (id, title, content, category, author_id, author_name, published_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		blog.Id,
		blog.Title,
		blog.Content,
		blog.Category,
		blog.AuthorId,
		blog.AuthorName,
		blog.PublishedAt,
		blog.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create blog: %w", err)
	}

	return nil
}
