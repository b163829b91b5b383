// Package sample produces row samples from delimited table files. Samples
// are kept as raw text lines: the inspection prompts want the rows verbatim,
// not parsed values.
package sample

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
)

// ReadRows reads all non-empty lines. The first line is assumed to be the
// header row.
func ReadRows(r io.Reader) ([]string, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("need a header row plus at least one data row, got %d lines", len(rows))
	}
	return rows, nil
}

// Rows returns a header-preserving random sample of n data rows, without
// replacement. If fewer than n data rows exist, all of them are returned.
func Rows(rows []string, n int, rng *rand.Rand) []string {
	header, data := rows[0], rows[1:]
	idx := shuffled(len(data), rng)
	if n > len(data) {
		n = len(data)
	}
	out := make([]string, 0, n+1)
	out = append(out, header)
	for _, i := range idx[:n] {
		out = append(out, data[i])
	}
	return out
}

// Split returns two disjoint header-preserving samples of up to n data rows
// each, for the two inspection passes.
func Split(rows []string, n int, rng *rand.Rand) (first, second []string) {
	header, data := rows[0], rows[1:]
	idx := shuffled(len(data), rng)

	take := func(from, upto int) []string {
		if from > len(idx) {
			from = len(idx)
		}
		if upto > len(idx) {
			upto = len(idx)
		}
		out := make([]string, 0, upto-from+1)
		out = append(out, header)
		for _, i := range idx[from:upto] {
			out = append(out, data[i])
		}
		return out
	}
	return take(0, n), take(n, 2*n)
}

func shuffled(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if rng == nil {
		rand.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	} else {
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return idx
}
