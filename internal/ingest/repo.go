package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

// RepoVersion selects which component library layout to ingest.
type RepoVersion string

const (
	VersionV1 RepoVersion = "v1"
	VersionV2 RepoVersion = "v2"
)

func (v RepoVersion) componentCategory() string {
	if v == VersionV1 {
		return store.CategoryV1Components
	}
	return store.CategoryV2Components
}

func (v RepoVersion) docCategory() string {
	if v == VersionV1 {
		return store.CategoryV1Docs
	}
	return store.CategoryV2Docs
}

// IngestRepo walks a component repository, analyzes each modus component
// source, and stores component and documentation units.
func IngestRepo(ctx context.Context, contextStore *store.ContextStore, analyzer *Analyzer, repoDir string, version RepoVersion) (int, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "IngestRepo")
	defer timer.Stop()

	docs, err := loadComponentDocs(repoDir, version)
	if err != nil {
		return 0, err
	}
	for name, content := range docs {
		if err := contextStore.UpsertUnit(ctx, store.Unit{
			Category: version.docCategory(),
			Name:     name,
			Content:  content,
		}); err != nil {
			return 0, err
		}
	}

	count := 0
	err = filepath.WalkDir(repoDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "modus-") || !strings.HasSuffix(name, ".tsx") {
			return nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		detail, err := analyzer.Analyze(ctx, source)
		if err != nil {
			logging.Ingest("[Ingest] skipping unparsable %s: %v", name, err)
			return nil
		}
		analysisJSON, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to encode analysis for %s: %w", name, err)
		}

		if err := contextStore.UpsertUnit(ctx, store.Unit{
			Category: version.componentCategory(),
			Name:     name,
			Content:  string(source),
			Meta: map[string]string{
				"source":   path,
				"analysis": string(analysisJSON),
			},
		}); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to ingest %s repo: %w", version, err)
	}

	logging.Ingest("[Ingest] stored %d components and %d docs from %s", count, len(docs), repoDir)
	return count, nil
}

// loadComponentDocs collects per-component documentation. The v1 library
// keeps storybook markdown docs; the v2 library keeps stories files next
// to each component.
func loadComponentDocs(repoDir string, version RepoVersion) (map[string]string, error) {
	docs := make(map[string]string)

	switch version {
	case VersionV1:
		root := filepath.Join(repoDir, "stencil-workspace", "storybook", "stories", "components")
		if _, err := os.Stat(root); err != nil {
			return docs, nil
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			ext := filepath.Ext(path)
			if ext != ".md" && ext != ".txt" {
				return nil
			}
			name := strings.TrimSuffix(strings.ToLower(d.Name()), ext)
			name = strings.ReplaceAll(name, "-storybook-docs", "")
			name = strings.ReplaceAll(name, ".stories", "")
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			docs[name] = string(content)
			return nil
		})
		return docs, err

	case VersionV2:
		root := filepath.Join(repoDir, "src", "components")
		if _, err := os.Stat(root); err != nil {
			return docs, nil
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			matches, _ := filepath.Glob(filepath.Join(root, entry.Name(), "*.stories.ts"))
			for _, m := range matches {
				content, err := os.ReadFile(m)
				if err != nil {
					return nil, err
				}
				docs[entry.Name()] = string(content)
			}
		}
		return docs, nil
	}

	return docs, nil
}
