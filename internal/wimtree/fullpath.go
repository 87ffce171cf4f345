package wimtree

// FullPath returns d's separator-joined path from the root, computing and
// caching it lazily (spec.md §4.2 "Full-path cache"). Any structural
// mutation of an ancestor invalidates descendants' caches via
// Dentry.invalidateFullPath, called from AddChild/Unlink/rename.
func FullPath(d *Dentry, sep byte) string {
	if d.fullPathValid {
		return d.fullPath
	}
	if d.IsRoot() {
		d.fullPath = string(sep)
		d.fullPathValid = true
		return d.fullPath
	}
	parent := FullPath(d.Parent, sep)
	name := d.Name.String()
	if parent == string(sep) {
		d.fullPath = parent + name
	} else {
		d.fullPath = parent + string(sep) + name
	}
	d.fullPathValid = true
	return d.fullPath
}
