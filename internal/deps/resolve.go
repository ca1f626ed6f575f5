package deps

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openbootdotdev/devenv/internal/tools"
)

var ErrCircularDependency = errors.New("Circular dependency detected")

type UnknownToolError struct {
	ID string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool ID: %s", e.ID)
}

// ResolveOrder returns ids so that every tool comes after the dependencies
// it has inside the same set. Dependencies outside the set are ignored.
//
// The result is deterministic: when multiple tools are ready, the one that
// appears first in ids is picked.
func ResolveOrder(ids []string, templates []tools.Template) ([]string, error) {
	byID := tools.IndexByID(templates)

	index := make(map[string]int, len(ids))
	var unique []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &UnknownToolError{ID: id}
		}
		if _, seen := index[id]; seen {
			continue
		}
		index[id] = len(unique)
		unique = append(unique, id)
	}

	n := len(unique)
	if n == 0 {
		return []string{}, nil
	}

	indeg := make([]int, n)
	out := make([][]int, n)
	for i, id := range unique {
		seenDep := make(map[string]bool)
		for _, dep := range byID[id].Dependencies {
			d, ok := index[dep]
			if !ok || seenDep[dep] {
				continue
			}
			seenDep[dep] = true
			indeg[i]++
			out[d] = append(out[d], i)
		}
	}
	for i := range out {
		sort.Ints(out[i])
	}

	var ready []int
	for i := range n {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]

		order = append(order, unique[i])
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != n {
		return nil, ErrCircularDependency
	}
	return order, nil
}

// Closure returns ids followed by every transitive dependency that is not
// installed and not already listed. Unknown ids are an error.
func Closure(ids []string, templates []tools.Template, installed map[string]bool) ([]string, error) {
	byID := tools.IndexByID(templates)

	result := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &UnknownToolError{ID: id}
		}
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}

	for i := 0; i < len(result); i++ {
		for _, dep := range byID[result[i]].Dependencies {
			if seen[dep] || installed[dep] {
				continue
			}
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownToolError{ID: dep}
			}
			seen[dep] = true
			result = append(result, dep)
		}
	}
	return result, nil
}
