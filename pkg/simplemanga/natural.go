package simplemanga

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortFiles orders files by name the way a reader expects page files to be
// ordered: digit runs compare numerically ("2.jpg" before "10.jpg") and case
// and accents are ignored. Equal names keep their input order.
func SortFiles(files []File) []File {
	sorted := slices.Clone(files)
	col := collate.New(language.Und, collate.Loose, collate.Numeric)
	slices.SortStableFunc(sorted, func(a, b File) int {
		return col.CompareString(a.Name, b.Name)
	})
	return sorted
}

// CompareNames compares two file names with the ordering used by SortFiles.
func CompareNames(a, b string) int {
	return collate.New(language.Und, collate.Loose, collate.Numeric).CompareString(a, b)
}
