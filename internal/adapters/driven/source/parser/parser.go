// Package parser derives doc-generation units from a revision's files.
// It is a structural stand-in for a language-aware parser: one unit per
// text file, plus one unit per directory that holds several files.
package parser

import (
	"path"
	"sort"
	"strings"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.StructuralParser = (*Parser)(nil)

// minDirectoryFiles is how many files a directory needs before it gets
// its own overview page.
const minDirectoryFiles = 2

// skippedExtensions are never worth a wiki page.
var skippedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".svg": true, ".pdf": true, ".zip": true, ".gz": true, ".tar": true,
	".jar": true, ".exe": true, ".so": true, ".dylib": true, ".dll": true,
	".lock": true, ".sum": true, ".bin": true, ".woff": true, ".woff2": true,
}

// Parser is the default structural parser.
type Parser struct{}

// New creates a structural parser.
func New() *Parser {
	return &Parser{}
}

// Units derives doc-generation units from the files in scope. READMEs
// become overview pages, other text files become code pages, and
// directories with enough files get a directory page summarising them.
func (p *Parser) Units(repo domain.Repository, files []domain.RepoFile) []driven.DocUnit {
	var units []driven.DocUnit
	byDir := make(map[string][]string)

	for _, f := range files {
		if skippedExtensions[strings.ToLower(path.Ext(f.Path))] {
			continue
		}

		if isReadme(f.Path) {
			units = append(units, driven.DocUnit{
				SourcePath: f.Path,
				Title:      readmeTitle(repo, f.Path),
				Kind:       domain.PageKindReadme,
				Paths:      []string{f.Path},
			})
			continue
		}

		units = append(units, driven.DocUnit{
			SourcePath: f.Path,
			Title:      path.Base(f.Path),
			Kind:       domain.PageKindCode,
			Paths:      []string{f.Path},
		})

		if dir := path.Dir(f.Path); dir != "." {
			byDir[dir] = append(byDir[dir], f.Path)
		}
	}

	dirs := make([]string, 0, len(byDir))
	for dir, paths := range byDir {
		if len(paths) >= minDirectoryFiles {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		paths := byDir[dir]
		sort.Strings(paths)
		units = append(units, driven.DocUnit{
			SourcePath: dir,
			Title:      dir + "/",
			Kind:       domain.PageKindDirectory,
			Paths:      paths,
		})
	}

	return units
}

// isReadme reports whether path is a README file at any level.
func isReadme(p string) bool {
	base := strings.ToLower(path.Base(p))
	return base == "readme" || strings.HasPrefix(base, "readme.")
}

// readmeTitle names the root README after the repository itself.
func readmeTitle(repo domain.Repository, p string) string {
	if path.Dir(p) == "." && repo.Name != "" {
		return repo.Name
	}
	return path.Dir(p) + " README"
}
