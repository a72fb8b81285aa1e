package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/treealloc/treealloc/block"
	"github.com/treealloc/treealloc/heap"
)

// Color palette: black tree nodes render blue so they stay readable on dark
// terminals, matching the usual convention for red-black tree dumps.
var (
	blackNodeColor = lipgloss.Color("12")
	redNodeColor   = lipgloss.Color("9")
	dupColor       = lipgloss.Color("14")
	allocColor     = lipgloss.Color("10")
)

type renderStyles struct {
	blackNode lipgloss.Style
	redNode   lipgloss.Style
	duplicate lipgloss.Style
	allocated lipgloss.Style
}

func newRenderStyles(color bool) renderStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return renderStyles{blackNode: plain, redNode: plain, duplicate: plain, allocated: plain}
	}
	return renderStyles{
		blackNode: lipgloss.NewStyle().Bold(true).Foreground(blackNodeColor),
		redNode:   lipgloss.NewStyle().Bold(true).Foreground(redNodeColor),
		duplicate: lipgloss.NewStyle().Bold(true).Foreground(dupColor),
		allocated: lipgloss.NewStyle().Bold(true).Foreground(allocColor),
	}
}

func (s renderStyles) forColor(c block.Color) lipgloss.Style {
	if c == block.Red {
		return s.redNode
	}
	return s.blackNode
}

// renderTree draws the free tree in a directory-listing style, right subtree
// above left so the output reads top-down from largest to smallest. With
// expanded set, each duplicate chain is spelled out offset by offset instead
// of the compact (+N) count.
func renderTree(root *heap.TreeNode, styles renderStyles, expanded bool) string {
	var sb strings.Builder
	if expanded {
		sb.WriteString(styles.duplicate.Render("(+N: ...)"))
		sb.WriteString(" lists the offsets of N same-size duplicates chained off a tree node.\n")
	} else {
		sb.WriteString(styles.duplicate.Render("(+N)"))
		sb.WriteString(" marks N same-size duplicates chained off a tree node.\n")
	}
	if root == nil {
		sb.WriteString(" (tree is empty)\n")
		return sb.String()
	}

	sb.WriteString(" ")
	renderNode(&sb, root, styles, expanded)
	renderSubtrees(&sb, root, "", styles, expanded)
	return sb.String()
}

func renderNode(sb *strings.Builder, n *heap.TreeNode, styles renderStyles, expanded bool) {
	style := styles.forColor(n.Color)
	sb.WriteString(style.Render(fmt.Sprintf("%#x:(%dbytes)", uint64(n.Offset), n.Size)))
	sb.WriteString(fmt.Sprintf("(bh: %d)", n.BlackHeight))
	if n.Duplicates > 0 {
		sb.WriteString(styles.duplicate.Render(renderDuplicates(n, expanded)))
	}
	sb.WriteString("\n")
}

func renderDuplicates(n *heap.TreeNode, expanded bool) string {
	if !expanded {
		return fmt.Sprintf("(+%d)", n.Duplicates)
	}
	offsets := make([]string, len(n.DuplicateOffsets))
	for i, off := range n.DuplicateOffsets {
		offsets[i] = fmt.Sprintf("%#x", uint64(off))
	}
	return fmt.Sprintf("(+%d: %s)", n.Duplicates, strings.Join(offsets, " "))
}

func renderSubtrees(sb *strings.Builder, n *heap.TreeNode, prefix string, styles renderStyles, expanded bool) {
	switch {
	case n.Right == nil && n.Left == nil:
	case n.Right == nil:
		renderChild(sb, n.Left, prefix, true, "L:", styles, expanded)
	case n.Left == nil:
		renderChild(sb, n.Right, prefix, true, "R:", styles, expanded)
	default:
		renderChild(sb, n.Right, prefix, false, "R:", styles, expanded)
		renderChild(sb, n.Left, prefix, true, "L:", styles, expanded)
	}
}

func renderChild(sb *strings.Builder, n *heap.TreeNode, prefix string, last bool, dir string, styles renderStyles, expanded bool) {
	sb.WriteString(prefix)
	if last {
		sb.WriteString(" └──")
	} else {
		sb.WriteString(" ├──")
	}
	sb.WriteString(styles.duplicate.Render(dir))
	renderNode(sb, n, styles, expanded)

	childPrefix := prefix + " │  "
	if last {
		childPrefix = prefix + "    "
	}
	renderSubtrees(sb, n, childPrefix, styles, expanded)
}

// renderHeap draws every block in address order: allocated blocks in green,
// free blocks in their tree color with their footer word, and the sentinel
// last.
func renderHeap(h *heap.Heap, styles renderStyles) string {
	var sb strings.Builder
	_ = h.VisitAllBlocks(func(info heap.BlockInfo) error {
		line := fmt.Sprintf("%#x: HDR->0x%016X(%dbytes)",
			uint64(info.Handle), uint64(info.Header), info.Header.Size())
		if info.Free {
			sb.WriteString(styles.forColor(info.Header.Color()).Render(line))
		} else {
			sb.WriteString(styles.allocated.Render(line))
		}
		sb.WriteString("\n")
		return nil
	})
	sb.WriteString(fmt.Sprintf("%#x: SENTINEL->%dbytes\n", uint64(h.Size()-block.NodeWidth), block.NodeWidth))
	return sb.String()
}
