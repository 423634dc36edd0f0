// Package classifier groups the input directory's files into the four
// known record-type categories by filename convention.
package classifier

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

// typeMarkers is checked in order: the original-donor marker must come
// before the revenue marker because those filenames also contain
// "receitas" (e.g. receitas_doador_originario_2024_SP.csv).
var typeMarkers = []struct {
	marker string
	rtype  models.RecordType
}{
	{"doador_originario", models.TypeOriginalDonor},
	{"despesas_contratadas", models.TypeContractedExpense},
	{"despesas_pagas", models.TypePaidExpense},
	{"receitas", models.TypeRevenue},
}

// Result is the outcome of classifying one directory.
type Result struct {
	ByType  map[models.RecordType][]models.FileDescriptor
	Skipped int
}

// Files returns every classified descriptor in deterministic order:
// record types in their fixed order, paths lexicographic within a type.
func (r Result) Files() []models.FileDescriptor {
	var all []models.FileDescriptor
	for _, t := range models.AllRecordTypes() {
		all = append(all, r.ByType[t]...)
	}
	return all
}

// Classify walks dir and buckets each regular file by the first marker
// its lowercased name contains. Files matching no marker are counted as
// skipped, never treated as an error. Unreadable subdirectories and
// entries that fail to stat are skipped too; only a failure to list dir
// itself is fatal.
func Classify(dir string) (Result, error) {
	return classifyFS(os.DirFS(dir), dir)
}

func classifyFS(fsys fs.FS, dir string) (Result, error) {
	result := Result{ByType: make(map[models.RecordType][]models.FileDescriptor)}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root entry is the listing precondition; anything below
			// it is skipped like any other unusable file.
			if path == "." {
				return err
			}
			slog.Warn("skipping unreadable path", "path", filepath.Join(dir, path), "error", err)
			result.Skipped++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rtype, ok := classifyName(d.Name())
		if !ok {
			result.Skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("skipping unreadable path", "path", filepath.Join(dir, path), "error", err)
			result.Skipped++
			return nil
		}

		result.ByType[rtype] = append(result.ByType[rtype], models.FileDescriptor{
			Path: filepath.Join(dir, path),
			Type: rtype,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("error walking directory %s: %w", dir, err)
	}

	for _, descriptors := range result.ByType {
		sort.Slice(descriptors, func(i, j int) bool {
			return descriptors[i].Path < descriptors[j].Path
		})
	}

	return result, nil
}

func classifyName(name string) (models.RecordType, bool) {
	lowered := strings.ToLower(name)
	for _, tm := range typeMarkers {
		if strings.Contains(lowered, tm.marker) {
			return tm.rtype, true
		}
	}
	return "", false
}
