package forum

import "sort"

// BuildTree assembles the comment forest of a post from its flat comment
// list in one pass over a parent→children index. Siblings keep creation
// order. A comment whose parent is missing from the list, or was not created
// before it, is returned as a root, so every input comment appears exactly
// once.
func BuildTree(comments []Comment) []*CommentNode {
	nodes := make([]*CommentNode, len(comments))
	for i := range comments {
		nodes[i] = &CommentNode{Comment: comments[i], Children: []*CommentNode{}}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	// position doubles as "seen so far": a parent must precede its child.
	position := make(map[int64]int, len(nodes))
	roots := []*CommentNode{}
	for i, n := range nodes {
		n.Replies = []int64{}
		position[n.ID] = i
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		pi, ok := position[*n.ParentID]
		if !ok || pi >= i {
			roots = append(roots, n)
			continue
		}
		parent := nodes[pi]
		parent.Children = append(parent.Children, n)
		parent.Replies = append(parent.Replies, n.ID)
	}
	return roots
}

// CountNodes returns the number of nodes in a forest.
func CountNodes(forest []*CommentNode) int {
	n := 0
	stack := append([]*CommentNode(nil), forest...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, top.Children...)
	}
	return n
}
