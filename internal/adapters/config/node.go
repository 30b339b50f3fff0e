package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the recipe loader graft node.
const NodeID graft.ID = "adapter.recipe_loader"

// RecipePathEnv names the environment variable holding extra recipe directories.
const RecipePathEnv = "KILN_RECIPE_PATH"

func init() {
	graft.Register(graft.Node[ports.RecipeLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.RecipeLoader, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(log, SearchDirs(os.Getenv(RecipePathEnv))...), nil
		},
	})
}

// SearchDirs returns the recipe directories for a KILN_RECIPE_PATH value,
// followed by the default recipe directory.
func SearchDirs(recipePath string) []string {
	var dirs []string
	for _, dir := range filepath.SplitList(recipePath) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, domain.RecipeDirName)
}
