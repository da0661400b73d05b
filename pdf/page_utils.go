package pdf

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var whitespace = regexp.MustCompile(`\s`)

// ParsePageSpecifier parses a page specification string and returns a sorted,
// de-duplicated list of 1-based page numbers.
// Supports formats: "1", "1,3", "1-5", "1,3-5,7" and open ranges like "4-"
// which run to total.
func ParsePageSpecifier(pages string, total int) ([]int, error) {
	pages = whitespace.ReplaceAllString(pages, "")
	if pages == "" {
		return nil, fmt.Errorf("empty page specification")
	}

	var pageList []int
	for _, part := range strings.Split(pages, ",") {
		if !strings.Contains(part, "-") {
			pageNum, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", part)
			}
			pageList = append(pageList, pageNum)
			continue
		}

		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range: %s", part)
		}

		start, err := strconv.Atoi(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}

		end := total
		if rangeParts[1] != "" {
			end, err = strconv.Atoi(rangeParts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
			}
		}

		if start > end {
			return nil, fmt.Errorf("invalid range: start > end (%d > %d)", start, end)
		}
		if end > total {
			return nil, fmt.Errorf("page %d exceeds total pages (%d)", end, total)
		}

		for i := start; i <= end; i++ {
			pageList = append(pageList, i)
		}
	}

	sort.Ints(pageList)
	deduped := pageList[:0]
	for i, page := range pageList {
		if i == 0 || page != pageList[i-1] {
			deduped = append(deduped, page)
		}
	}

	return deduped, nil
}

// ValidatePageNumbers checks if all page numbers are valid for a given total number of pages
func ValidatePageNumbers(pages []int, totalPages int) error {
	for _, page := range pages {
		if page < 1 {
			return fmt.Errorf("page numbers must be positive, got %d", page)
		}
		if page > totalPages {
			return fmt.Errorf("page %d exceeds total pages (%d)", page, totalPages)
		}
	}
	return nil
}

// selectPages turns an optional page specification into 0-based page
// indices in source order. An empty specification selects every page.
func selectPages(spec string, total int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		indices := make([]int, total)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	pages, err := ParsePageSpecifier(spec, total)
	if err != nil {
		return nil, err
	}
	if err := ValidatePageNumbers(pages, total); err != nil {
		return nil, err
	}

	for i := range pages {
		pages[i]--
	}
	return pages, nil
}
