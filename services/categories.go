package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
)

type CategoryService struct{}

func NewCategoryService() *CategoryService {
	return &CategoryService{}
}

// List returns every category with the number of posts filed under it.
func (s *CategoryService) List(ctx context.Context) ([]models.CategoryWithCount, error) {
	result := []models.CategoryWithCount{}
	err := db.GetReadOnlyDB(ctx).
		Table("category c").
		Select("c.id, c.slug, c.name, c.description, COUNT(p.id) AS post_count").
		Joins("LEFT JOIN posts p ON p.category_id = c.id").
		Group("c.id, c.slug, c.name, c.description").
		Order("c.name").
		Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return result, nil
}

func (s *CategoryService) BySlug(ctx context.Context, slug string) (*models.Category, error) {
	return categoryBySlug(ctx, slug)
}

func categoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	err := db.GetReadOnlyDB(ctx).Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("category %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
