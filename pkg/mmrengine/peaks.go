package mmrengine

import "math/bits"

// nodeCount returns the total number of MMR node positions (1-indexed) after
// leavesCount leaves have been appended: 2*L - popcount(L). This is the
// node-count identity named in spec §4.1 and verified by testable
// property §8.
func nodeCount(leavesCount uint64) uint64 {
	if leavesCount == 0 {
		return 0
	}
	return 2*leavesCount - uint64(bits.OnesCount64(leavesCount))
}

// peakHeights decomposes leavesCount into the heights of its perfect
// subtrees, most-significant bit first. Height h covers 2^h leaves.
func peakHeights(leavesCount uint64) []uint {
	var heights []uint
	for h := uint(63); ; h-- {
		if leavesCount&(1<<h) != 0 {
			heights = append(heights, h)
		}
		if h == 0 {
			break
		}
	}
	return heights
}

// findPeaks returns the 1-indexed node positions of every peak for the given
// leaf count, ordered left (tallest, most-significant bit) to right.
func findPeaks(leavesCount uint64) []uint64 {
	heights := peakHeights(leavesCount)
	peaks := make([]uint64, 0, len(heights))
	var pos uint64
	for _, h := range heights {
		size := subtreeSize(h)
		pos += size
		peaks = append(peaks, pos)
	}
	return peaks
}

// subtreeSize returns the number of node positions occupied by a perfect
// subtree of height h (2^h leaves): 2^(h+1) - 1.
func subtreeSize(h uint) uint64 {
	return (uint64(1) << (h + 1)) - 1
}
