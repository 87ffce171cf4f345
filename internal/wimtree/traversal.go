package wimtree

// ForEachChild visits the direct children of d in collation order, stopping
// early if fn returns false (spec.md §4.2 "child-order" traversal).
func ForEachChild(d *Dentry, fn func(*Dentry) bool) {
	if d.Inode == nil {
		return
	}
	d.Inode.children.ascend(fn)
}

// ForDentryInTree visits root and every descendant in pre-order: a parent is
// visited before its children, and children are visited in collation order
// (spec.md §5 Ordering guarantees). Traversal stops at the first fn call
// that returns false, and that false propagates out.
func ForDentryInTree(root *Dentry, fn func(*Dentry) bool) bool {
	if !fn(root) {
		return false
	}
	cont := true
	ForEachChild(root, func(c *Dentry) bool {
		cont = ForDentryInTree(c, fn)
		return cont
	})
	return cont
}

// ForDentryInTreePostorder visits every descendant before root itself, and
// is safe against fn freeing the dentry it was just called with (spec.md
// §4.2 "post-order traversal must be safe against freeing the visited
// dentry"): children are snapshotted before fn is invoked on any of them.
func ForDentryInTreePostorder(root *Dentry, fn func(*Dentry)) {
	if root.Inode == nil {
		fn(root)
		return
	}
	var children []*Dentry
	ForEachChild(root, func(c *Dentry) bool {
		children = append(children, c)
		return true
	})
	for _, c := range children {
		ForDentryInTreePostorder(c, fn)
	}
	fn(root)
}
