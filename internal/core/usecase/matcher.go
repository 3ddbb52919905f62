package usecase

import (
	"path/filepath"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

var candidateExtensions = map[string]bool{
	".json": true,
	".csv":  true,
	".html": true,
}

// InferCategory returns the first category, in registry order, whose known
// files are all present in fileNames. Extra names are ignored.
func InferCategory(categories []domain.Category, fileNames []string) (domain.Category, bool) {
	present := make(map[string]struct{}, len(fileNames))
	for _, name := range fileNames {
		present[name] = struct{}{}
	}

	for _, category := range categories {
		if len(category.KnownFiles) == 0 {
			continue
		}
		if containsAll(present, category.KnownFiles) {
			return category, true
		}
	}
	return domain.Category{}, false
}

func containsAll(present map[string]struct{}, names []string) bool {
	for _, name := range names {
		if _, ok := present[name]; !ok {
			return false
		}
	}
	return true
}

// candidateFileNames keeps base names of json/csv/html members.
func candidateFileNames(members []string) []string {
	out := make([]string, 0, len(members))
	for _, member := range members {
		base := filepath.Base(filepath.ToSlash(member))
		if !candidateExtensions[filepath.Ext(base)] {
			continue
		}
		out = append(out, base)
	}
	return out
}
