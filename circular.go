// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"slices"
	"strings"
	"time"
)

// CircularReport is the outcome of a circular reference analysis. Each chain
// lists the node ids ("Sheet!A1") of one cycle in dependency order, starting
// at its smallest node; the edge from the last node back to the first closes
// the cycle.
type CircularReport struct {
	HasCircularReferences bool       `json:"hasCircularReferences"`
	CircularChains        [][]string `json:"circularChains"`
	AnalysisTimeMs        float64    `json:"analysisTimeMs"`
	Nodes                 int        `json:"nodes"`
	Edges                 int        `json:"edges"`
}

// DetectCircularReferences provides a function to find formula cells that
// depend on themselves, directly or through other formula cells, across
// every sheet of the workbook.
//
// Ranges are resolved through ExpandRange with Options.MaxSampleCells, so a
// cycle that passes only through the unsampled interior of a large range is
// not reported. Each node is searched once, so a cycle that re-enters a node
// finished by an earlier search goes unreported: for A1=B1+C1, B1=A1 and
// C1=B1 the report holds A1 -> B1 but not A1 -> C1 -> B1. An empty report
// still means the sampled graph is acyclic. The analysis is advisory; the evaluation engine remains the
// authority on whether a formula errors. References to sheets that do not
// exist are ignored.
func DetectCircularReferences(wb *Workbook, opts ...Options) *CircularReport {
	o := getOptions(opts...)
	startTime := time.Now()
	report := &CircularReport{CircularChains: [][]string{}}
	if wb == nil {
		return report
	}

	g := buildCircularGraph(wb, o.MaxSampleCells)
	report.Nodes, report.Edges = len(g.nodes), g.edges
	report.CircularChains = g.findCycles()
	report.HasCircularReferences = len(report.CircularChains) > 0

	elapsed := time.Since(startTime)
	report.AnalysisTimeMs = float64(elapsed.Microseconds()) / 1000
	circularAnalysisDuration.Observe(elapsed.Seconds())
	circularChainsTotal.Add(float64(len(report.CircularChains)))
	o.Logger.Debug("circular reference analysis",
		"nodes", report.Nodes,
		"edges", report.Edges,
		"chains", len(report.CircularChains),
		"duration", elapsed)
	return report
}

// circularGraph holds formula cells and the formula cells each one reads.
type circularGraph struct {
	nodes []CellRef
	succ  map[CellRef][]CellRef
	edges int
}

func buildCircularGraph(wb *Workbook, maxCells int) *circularGraph {
	g := &circularGraph{
		nodes: wb.FormulaCells(),
		succ:  make(map[CellRef][]CellRef),
	}
	for _, node := range g.nodes {
		seen := make(map[CellRef]struct{})
		var targets []CellRef
		for _, ref := range ExtractReferences(wb.CellAt(node).Formula, node.Sheet) {
			sheet, ok := wb.Sheet(ref.Sheet)
			if !ok {
				continue
			}
			for _, addr := range ExpandRange(ref.Range.Start, ref.Range.End, maxCells) {
				if !sheet.Cells[addr].HasFormula() {
					continue
				}
				target := CellRef{Sheet: sheet.Name, Addr: addr}
				if _, dup := seen[target]; dup {
					continue
				}
				seen[target] = struct{}{}
				targets = append(targets, target)
			}
		}
		g.succ[node] = targets
		g.edges += len(targets)
	}
	return g
}

// findCycles runs a depth-first traversal from every unvisited node. Meeting
// a node that is on the active path closes a cycle made of the path suffix
// starting at that node.
func (g *circularGraph) findCycles() [][]string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[CellRef]int, len(g.nodes))
	pathIndex := make(map[CellRef]int)
	var path []CellRef
	chains := [][]string{}
	seen := make(map[string]struct{})

	var visit func(n CellRef)
	visit = func(n CellRef) {
		state[n] = onPath
		pathIndex[n] = len(path)
		path = append(path, n)
		for _, next := range g.succ[n] {
			switch state[next] {
			case unvisited:
				visit(next)
			case onPath:
				chain := canonicalChain(path[pathIndex[next]:])
				key := strings.Join(chain, "\x00")
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					chains = append(chains, chain)
				}
			}
		}
		path = path[:len(path)-1]
		delete(pathIndex, n)
		state[n] = done
	}
	for _, n := range g.nodes {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return chains
}

// canonicalChain rotates a cycle to start at its smallest node.
func canonicalChain(cycle []CellRef) []string {
	start := 0
	for i, c := range cycle {
		if compareCellRef(c, cycle[start]) < 0 {
			start = i
		}
	}
	rotated := slices.Concat(cycle[start:], cycle[:start])
	ids := make([]string, len(rotated))
	for i, c := range rotated {
		ids[i] = c.String()
	}
	return ids
}
