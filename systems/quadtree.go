package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MaxQuadDepth bounds subdivision.
	MaxQuadDepth = 8
	// MinQuadCell is the smallest side a child node may have.
	MinQuadCell = 1.0
)

// Collidable is anything that can be tested against static geometry.
type Collidable interface {
	// Shape returns the collider baked at the current pose.
	Shape() Shape
	// CollideWith is the response to an actual intersection with l.
	CollideWith(l Line)
}

// Quadtree indexes static line segments. Each line is stored in the smallest
// node whose bounds fully contain it. Read-only after baking.
type Quadtree struct {
	Bounds r2.Box
	Depth  int
	Lines  []Line

	NW, NE, SW, SE *Quadtree
}

// NewQuadtree creates an empty root over bounds.
func NewQuadtree(bounds r2.Box) *Quadtree {
	return &Quadtree{Bounds: bounds}
}

// BakeQuadtree builds an index over the bounding box of lines and inserts
// every line. With no lines the root is a degenerate 1x1 box at the origin.
func BakeQuadtree(lines []Line) *Quadtree {
	bounds := r2.Box{Max: r2.Vec{X: 1, Y: 1}}
	if len(lines) > 0 {
		bounds = lines[0].Bounds()
		for _, l := range lines[1:] {
			b := l.Bounds()
			bounds.Min.X = math.Min(bounds.Min.X, b.Min.X)
			bounds.Min.Y = math.Min(bounds.Min.Y, b.Min.Y)
			bounds.Max.X = math.Max(bounds.Max.X, b.Max.X)
			bounds.Max.Y = math.Max(bounds.Max.Y, b.Max.Y)
		}
	}
	q := NewQuadtree(bounds)
	for _, l := range lines {
		q.Insert(l)
	}
	return q
}

// Insert places l in the smallest node that fully contains it. Lines outside
// the root bounds are kept at the root.
func (q *Quadtree) Insert(l Line) {
	lb := l.Bounds()
	node := q
	for {
		child := node.childFor(lb)
		if child == nil {
			node.Lines = append(node.Lines, l)
			return
		}
		node = child
	}
}

// childFor returns the quadrant that fully contains lb, subdividing if needed,
// or nil when lb straddles quadrants or the node may not split further.
func (q *Quadtree) childFor(lb r2.Box) *Quadtree {
	if !q.canSplit() {
		return nil
	}
	midX := (q.Bounds.Min.X + q.Bounds.Max.X) / 2
	midY := (q.Bounds.Min.Y + q.Bounds.Max.Y) / 2

	west := lb.Max.X <= midX && lb.Min.X >= q.Bounds.Min.X
	east := lb.Min.X >= midX && lb.Max.X <= q.Bounds.Max.X
	south := lb.Max.Y <= midY && lb.Min.Y >= q.Bounds.Min.Y
	north := lb.Min.Y >= midY && lb.Max.Y <= q.Bounds.Max.Y

	var slot **Quadtree
	var box r2.Box
	switch {
	case north && west:
		slot = &q.NW
		box = r2.Box{Min: r2.Vec{X: q.Bounds.Min.X, Y: midY}, Max: r2.Vec{X: midX, Y: q.Bounds.Max.Y}}
	case north && east:
		slot = &q.NE
		box = r2.Box{Min: r2.Vec{X: midX, Y: midY}, Max: q.Bounds.Max}
	case south && west:
		slot = &q.SW
		box = r2.Box{Min: q.Bounds.Min, Max: r2.Vec{X: midX, Y: midY}}
	case south && east:
		slot = &q.SE
		box = r2.Box{Min: r2.Vec{X: midX, Y: q.Bounds.Min.Y}, Max: r2.Vec{X: q.Bounds.Max.X, Y: midY}}
	default:
		return nil
	}
	if *slot == nil {
		*slot = &Quadtree{Bounds: box, Depth: q.Depth + 1}
	}
	return *slot
}

func (q *Quadtree) canSplit() bool {
	if q.Depth >= MaxQuadDepth {
		return false
	}
	w := q.Bounds.Max.X - q.Bounds.Min.X
	h := q.Bounds.Max.Y - q.Bounds.Min.Y
	return w/2 >= MinQuadCell && h/2 >= MinQuadCell
}

func (q *Quadtree) children() [4]*Quadtree {
	return [4]*Quadtree{q.NW, q.NE, q.SW, q.SE}
}

// Len returns the number of lines stored in the tree.
func (q *Quadtree) Len() int {
	n := len(q.Lines)
	for _, c := range q.children() {
		if c != nil {
			n += c.Len()
		}
	}
	return n
}

// Query calls fn for every stored line whose bounds overlap box, depth first.
// Returning false from fn stops the traversal.
func (q *Quadtree) Query(box r2.Box, fn func(Line) bool) bool {
	if !boxesOverlap(q.Bounds, box) && q.Depth > 0 {
		return true
	}
	for _, l := range q.Lines {
		if boxesOverlap(l.Bounds(), box) && !fn(l) {
			return false
		}
	}
	for _, c := range q.children() {
		if c != nil && !c.Query(box, fn) {
			return false
		}
	}
	return true
}

// Collide tests c's baked shape against every line in overlapping nodes and
// calls c.CollideWith for each actual intersection. It returns the hit count.
func (q *Quadtree) Collide(c Collidable) int {
	shape := c.Shape()
	hits := 0
	q.Query(shape.Bounds, func(l Line) bool {
		if shape.Intersects(l) {
			hits++
			c.CollideWith(l)
		}
		return true
	})
	return hits
}

// RayCast returns the distance along dir from origin to the nearest line
// within length. dir need not be normalised.
func (q *Quadtree) RayCast(origin, dir r2.Vec, length float64) (float64, bool) {
	n := r2.Norm(dir)
	if n == 0 || length <= 0 {
		return 0, false
	}
	ray := Line{A: origin, B: r2.Add(origin, r2.Scale(length/n, dir))}
	best := math.Inf(1)
	q.Query(ray.Bounds(), func(l Line) bool {
		if t, ok := segmentIntersection(ray, l); ok && t*length < best {
			best = t * length
		}
		return true
	})
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}
