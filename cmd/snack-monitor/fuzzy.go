// Copyright 2026 The Snack SDK Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"sort"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// fuzzyMatch scores a single candidate against a query using fzf's
// V2 algorithm. A nil-Result Score of 0 with ok=false means the
// pattern did not match at all.
func fuzzyMatch(candidate string, pattern []rune, slab *util.Slab) (score int32, ok bool) {
	if len(pattern) == 0 {
		return 0, true
	}
	chars := util.RunesToChars([]rune(candidate))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, pattern, false, slab)
	if result.Start < 0 {
		return 0, false
	}
	return int32(result.Score), true
}

// fuzzyFilterResult pairs a filtered candidate with its match score,
// used to keep the candidates sorted best-match-first.
type fuzzyFilterResult struct {
	candidate string
	score     int32
}

// fuzzyFilter narrows candidates to those matching query, sorted by
// descending score. An empty query returns candidates unchanged.
func fuzzyFilter(candidates []string, query string) []string {
	if query == "" {
		return candidates
	}

	pattern := []rune(query)
	slab := util.MakeSlab(100*1024, 2048)

	var results []fuzzyFilterResult
	for _, candidate := range candidates {
		score, ok := fuzzyMatch(candidate, pattern, slab)
		if !ok {
			continue
		}
		results = append(results, fuzzyFilterResult{candidate: candidate, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	filtered := make([]string, len(results))
	for index, result := range results {
		filtered[index] = result.candidate
	}
	return filtered
}
