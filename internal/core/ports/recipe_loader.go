// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/kiln/internal/core/domain"

// RecipeLoader defines the interface for loading recipes.
//
//go:generate go run go.uber.org/mock/mockgen -source=recipe_loader.go -destination=mocks/mock_recipe_loader.go -package=mocks
type RecipeLoader interface {
	// Load reads a recipe from a file path, or resolves a bare name against the search directories.
	Load(ref string) (*domain.Recipe, error)
}
