// Package rbtree implements a red-black tree keyed by uint32, the ordered
// map the authoritative cache (internal/cache) uses to bucket entries by
// name hash. Any balanced search structure would satisfy the same contract;
// this implementation is the one this repository ships (see GetOrInsert,
// Get, Delete below for the three operations callers need).
package rbtree

type color bool

const (
	red   color = true
	black color = false
)

type node[V any] struct {
	key                 uint32
	value               V
	color               color
	left, right, parent *node[V]
}

// Tree is a red-black tree mapping uint32 keys to values of type V. The
// zero value is an empty, usable tree.
type Tree[V any] struct {
	root *node[V]
	size int
}

// New constructs an empty tree. Using the zero value directly also works;
// New exists for symmetry with the rest of the package layout.
func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// Len reports the number of keys currently stored.
func (t *Tree[V]) Len() int { return t.size }

// Get returns the value stored under key, if any.
func (t *Tree[V]) Get(key uint32) (V, bool) {
	n := t.find(key)
	if n == nil {
		var zero V
		return zero, false
	}
	return n.value, true
}

// GetOrInsert returns the existing value for key if present; otherwise it
// calls make to build a fresh value, inserts it, and returns it. This is
// the "insert-or-append-to-bucket" operation from the spec: callers pass a
// make func that builds an empty bucket, then mutate the returned bucket
// in place to append their entry.
func (t *Tree[V]) GetOrInsert(key uint32, make_ func() V) V {
	if n := t.find(key); n != nil {
		return n.value
	}
	v := make_()
	t.insert(key, v)
	return v
}

// Delete removes key from the tree. It reports whether the key was present.
func (t *Tree[V]) Delete(key uint32) bool {
	n := t.find(key)
	if n == nil {
		return false
	}
	t.deleteNode(n)
	t.size--
	return true
}

func (t *Tree[V]) find(key uint32) *node[V] {
	n := t.root
	for n != nil {
		switch {
		case key == n.key:
			return n
		case key < n.key:
			n = n.left
		default:
			n = n.right
		}
	}
	return nil
}

func (t *Tree[V]) insert(key uint32, value V) {
	var parent *node[V]
	cur := t.root
	for cur != nil {
		parent = cur
		if key < cur.key {
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	n := &node[V]{key: key, value: value, color: red, parent: parent}
	t.size++
	if parent == nil {
		t.root = n
		n.color = black
		return
	}
	if key < parent.key {
		parent.left = n
	} else {
		parent.right = n
	}
	t.insertFixup(n)
}

func (t *Tree[V]) insertFixup(n *node[V]) {
	for n.parent != nil && n.parent.color == red {
		gp := n.parent.parent
		if gp == nil {
			break
		}
		if n.parent == gp.left {
			uncle := gp.right
			if isRed(uncle) {
				n.parent.color = black
				uncle.color = black
				gp.color = red
				n = gp
				continue
			}
			if n == n.parent.right {
				n = n.parent
				t.rotateLeft(n)
			}
			n.parent.color = black
			gp.color = red
			t.rotateRight(gp)
		} else {
			uncle := gp.left
			if isRed(uncle) {
				n.parent.color = black
				uncle.color = black
				gp.color = red
				n = gp
				continue
			}
			if n == n.parent.left {
				n = n.parent
				t.rotateRight(n)
			}
			n.parent.color = black
			gp.color = red
			t.rotateLeft(gp)
		}
	}
	t.root.color = black
}

func isRed[V any](n *node[V]) bool {
	return n != nil && n.color == red
}

func (t *Tree[V]) rotateLeft(x *node[V]) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree[V]) rotateRight(x *node[V]) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (t *Tree[V]) transplant(u, v *node[V]) {
	switch {
	case u.parent == nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

func minimum[V any](n *node[V]) *node[V] {
	for n.left != nil {
		n = n.left
	}
	return n
}

func (t *Tree[V]) deleteNode(z *node[V]) {
	y := z
	yOriginalColor := y.color
	var x *node[V]
	var xParent *node[V]

	switch {
	case z.left == nil:
		x = z.right
		xParent = z.parent
		t.transplant(z, z.right)
	case z.right == nil:
		x = z.left
		xParent = z.parent
		t.transplant(z, z.left)
	default:
		y = minimum(z.right)
		yOriginalColor = y.color
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOriginalColor == black {
		t.deleteFixup(x, xParent)
	}
}

func (t *Tree[V]) deleteFixup(x, parent *node[V]) {
	for x != t.root && !isRed(x) {
		if parent == nil {
			break
		}
		if x == parent.left {
			w := parent.right
			if isRed(w) {
				w.color = black
				parent.color = red
				t.rotateLeft(parent)
				w = parent.right
			}
			if w == nil {
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.left) && !isRed(w.right) {
				w.color = red
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.right) {
				if w.left != nil {
					w.left.color = black
				}
				w.color = red
				t.rotateRight(w)
				w = parent.right
			}
			w.color = parent.color
			parent.color = black
			if w.right != nil {
				w.right.color = black
			}
			t.rotateLeft(parent)
			x = t.root
			parent = nil
		} else {
			w := parent.left
			if isRed(w) {
				w.color = black
				parent.color = red
				t.rotateRight(parent)
				w = parent.left
			}
			if w == nil {
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.right) && !isRed(w.left) {
				w.color = red
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.left) {
				if w.right != nil {
					w.right.color = black
				}
				w.color = red
				t.rotateLeft(w)
				w = parent.left
			}
			w.color = parent.color
			parent.color = black
			if w.left != nil {
				w.left.color = black
			}
			t.rotateRight(parent)
			x = t.root
			parent = nil
		}
	}
	if x != nil {
		x.color = black
	}
}
