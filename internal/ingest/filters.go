package ingest

import (
	"path"
	"sort"
	"strings"

	"machgate/internal/github"
)

// =============================================================================
// FILE SELECTION TABLES
// =============================================================================

// SourceExtensions are the file extensions ingested as code.
var SourceExtensions = map[string]struct{}{
	".go": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".mjs": {}, ".py": {},
	".rs": {}, ".java": {}, ".kt": {}, ".swift": {}, ".rb": {}, ".php": {}, ".cs": {},
	".c": {}, ".h": {}, ".cpp": {}, ".hpp": {}, ".sql": {}, ".prisma": {}, ".graphql": {},
	".proto": {}, ".vue": {}, ".svelte": {}, ".yaml": {}, ".yml": {}, ".toml": {},
}

// ExcludedDirs are path segments whose subtrees are never ingested.
var ExcludedDirs = map[string]struct{}{
	"node_modules": {}, "vendor": {}, "dist": {}, "build": {}, "out": {}, "target": {},
	".git": {}, ".next": {}, ".nuxt": {}, "coverage": {}, "__pycache__": {}, ".venv": {},
	"venv": {}, "bin": {}, "obj": {}, "third_party": {}, "testdata": {},
}

// excludedFiles are generated or lock files that carry no design signal.
var excludedFiles = map[string]struct{}{
	"package-lock.json": {}, "yarn.lock": {}, "pnpm-lock.yaml": {}, "go.sum": {}, "Cargo.lock": {},
}

// priorityNames are base names (without extension) that usually define a system's shape.
var priorityNames = map[string]int{
	"main": 30, "index": 25, "app": 25, "server": 25, "schema": 30, "routes": 25,
	"router": 25, "config": 20, "api": 20, "auth": 20, "models": 20, "handler": 15,
	"handlers": 15, "service": 15, "store": 15, "middleware": 15,
}

// priorityDirs are directory names that usually hold core logic.
var priorityDirs = map[string]int{
	"src": 10, "lib": 10, "api": 10, "app": 10, "internal": 10, "cmd": 10, "server": 10,
	"services": 8, "routes": 8, "models": 8, "prisma": 12, "db": 8,
}

// IsCandidate reports whether a tree entry should be fetched.
func IsCandidate(e github.TreeEntry, maxBytes int) bool {
	if e.Type != "blob" || e.Size <= 0 || (maxBytes > 0 && e.Size >= maxBytes) {
		return false
	}
	base := path.Base(e.Path)
	if _, ok := excludedFiles[base]; ok {
		return false
	}
	if isReadme(base) {
		// READMEs are ingested separately as documentation.
		return false
	}
	if strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".d.ts") {
		return false
	}
	if _, ok := SourceExtensions[strings.ToLower(path.Ext(base))]; !ok {
		return false
	}
	for _, seg := range strings.Split(path.Dir(e.Path), "/") {
		if _, ok := ExcludedDirs[seg]; ok {
			return false
		}
	}
	return true
}

func isReadme(base string) bool {
	return strings.HasPrefix(strings.ToLower(base), "readme")
}

// Priority scores a path; higher is fetched first.
func Priority(p string) int {
	score := 0
	base := path.Base(p)
	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
	score += priorityNames[stem]

	dirs := strings.Split(path.Dir(p), "/")
	for _, d := range dirs {
		score += priorityDirs[strings.ToLower(d)]
	}
	// Shallow files describe structure; deep ones tend to be leaves.
	if path.Dir(p) == "." {
		score += 5
	} else {
		score -= 2 * len(dirs)
	}

	lower := strings.ToLower(p)
	if strings.Contains(lower, "test") || strings.Contains(lower, "spec.") || strings.Contains(lower, "mock") {
		score -= 25
	}
	if strings.Contains(lower, "example") || strings.Contains(lower, "fixture") {
		score -= 15
	}
	return score
}

// SelectFiles filters tree to candidates and returns at most limit paths,
// highest priority first with path order breaking ties.
func SelectFiles(tree []github.TreeEntry, maxBytes, limit int) []string {
	var paths []string
	for _, e := range tree {
		if IsCandidate(e, maxBytes) {
			paths = append(paths, e.Path)
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		pi, pj := Priority(paths[i]), Priority(paths[j])
		if pi != pj {
			return pi > pj
		}
		return paths[i] < paths[j]
	})
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths
}
