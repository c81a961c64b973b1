package structure

import (
	"sort"

	"github.com/udon-tools/udecomp/cfg"
)

// Switch is a recovered switch statement: one arm per distinct jump target,
// plus the block chosen as default (§4.7).
type Switch struct {
	Header      int
	IndexSymbol string
	Cases       []SwitchArm
	Default     int
	Merge       int // nearest common post-dominator across every arm + default
}

// SwitchArm is one non-default arm: the table index values that land on
// Target, in ascending order.
type SwitchArm struct {
	Values []uint32
	Target int
}

// FindSwitches locates every block bearing recognized switch info and
// resolves its default arm and merge point.
//
// Default selection (§9 design note): the most-frequent table entry wins;
// ties are broken by lowest target address, making the otherwise-heuristic
// choice deterministic.
func FindSwitches(fn *cfg.ControlFlowGraph, pdom *DomTree) map[int]*Switch {
	out := make(map[int]*Switch)
	for _, id := range fn.BlockIDs {
		b := fn.Block(id)
		if b.Switch == nil {
			continue
		}
		byTarget, targetID := groupTargets(fn, b.Switch.Targets)
		defaultTarget := pickDefault(b.Switch.Targets)
		defaultID := targetID[defaultTarget]

		var arms []SwitchArm
		var mergeInputs []int
		for target, values := range byTarget {
			if target == defaultTarget {
				continue
			}
			arms = append(arms, SwitchArm{Values: values, Target: targetID[target]})
		}
		sort.Slice(arms, func(i, j int) bool { return arms[i].Target < arms[j].Target })
		for _, a := range arms {
			mergeInputs = append(mergeInputs, a.Target)
		}
		mergeInputs = append(mergeInputs, defaultID)

		merge := mergeInputs[0]
		for _, m := range mergeInputs[1:] {
			merge = pdom.NearestCommonAncestor(merge, m)
		}

		out[id] = &Switch{
			Header:      id,
			IndexSymbol: b.Switch.IndexSymbol,
			Cases:       arms,
			Default:     defaultID,
			Merge:       merge,
		}
	}
	return out
}

// groupTargets buckets a switch table's raw target addresses by block id,
// and returns a lookup from target address to its containing block id.
func groupTargets(fn *cfg.ControlFlowGraph, targets []uint32) (map[uint32][]uint32, map[uint32]int) {
	byTarget := make(map[uint32][]uint32)
	targetID := make(map[uint32]int)
	for idx, t := range targets {
		byTarget[t] = append(byTarget[t], uint32(idx))
		if _, ok := targetID[t]; !ok {
			for _, id := range fn.BlockIDs {
				if fn.Block(id).Start == t {
					targetID[t] = id
					break
				}
			}
		}
	}
	return byTarget, targetID
}

// pickDefault returns the most-frequent target address in targets, with
// ties broken by lowest address.
func pickDefault(targets []uint32) uint32 {
	counts := make(map[uint32]int, len(targets))
	for _, t := range targets {
		counts[t]++
	}
	best := targets[0]
	for t, c := range counts {
		bc := counts[best]
		if c > bc || (c == bc && t < best) {
			best = t
		}
	}
	return best
}
