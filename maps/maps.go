// Package maps provides the static geometry cars drive in.
package maps

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/systems"
)

var (
	// ErrUnknownMap is returned for a map name with no registered provider.
	ErrUnknownMap = errors.New("unknown map")
	// ErrZeroSizeMap is returned when a sized map is requested with a zero extent.
	ErrZeroSizeMap = errors.New("map width and height must be > 0")
)

// Map is a set of static line segments with a start pose. Its lines are
// immutable once baked.
type Map struct {
	Name         string
	Lines        []systems.Line
	Start        r2.Vec
	StartHeading float64

	index *systems.Quadtree
}

// New creates an unbaked map.
func New(name string, lines []systems.Line, start r2.Vec, heading float64) *Map {
	return &Map{
		Name:         name,
		Lines:        append([]systems.Line(nil), lines...),
		Start:        start,
		StartHeading: heading,
	}
}

// Bake builds the spatial index over the map's lines. Baking again rebuilds it.
func (m *Map) Bake() {
	m.index = systems.BakeQuadtree(m.Lines)
}

// Baked reports whether Bake has been called.
func (m *Map) Baked() bool {
	return m.index != nil
}

// Index returns the baked quadtree, or nil before Bake.
func (m *Map) Index() *systems.Quadtree {
	return m.index
}

// Collide tests c against the map and returns the number of lines hit.
// An unbaked map reports no collisions.
func (m *Map) Collide(c systems.Collidable) int {
	if m.index == nil {
		return 0
	}
	return m.index.Collide(c)
}

// RayCast returns the distance to the nearest line along dir within length.
func (m *Map) RayCast(origin, dir r2.Vec, length float64) (float64, bool) {
	if m.index == nil {
		return 0, false
	}
	return m.index.RayCast(origin, dir, length)
}

// DistanceFromStart returns the straight-line distance from p to the start.
func (m *Map) DistanceFromStart(p r2.Vec) float64 {
	return r2.Norm(r2.Sub(p, m.Start))
}

// Provider builds a baked map of the given extent.
type Provider func(width, height float64) (*Map, error)

var providers = map[string]Provider{
	"empty": Empty,
	"box":   Box,
	"track": Track,
}

// Names returns the registered map names, sorted.
func Names() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves name through the registry.
func Build(name string, width, height float64) (*Map, error) {
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownMap, name, Names())
	}
	return p(width, height)
}

// FromConfig loads cfg.File when set, otherwise builds cfg.Name.
func FromConfig(cfg config.MapConfig) (*Map, error) {
	if cfg.File != "" {
		return Load(cfg.File)
	}
	return Build(cfg.Name, cfg.Width, cfg.Height)
}

// Empty returns a map with no geometry and the start at the origin.
func Empty(_, _ float64) (*Map, error) {
	m := New("empty", nil, r2.Vec{}, 0)
	m.Bake()
	return m, nil
}

// Box returns a rectangular arena with its corner at the origin and the start
// at its centre, heading along +X.
func Box(width, height float64) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrZeroSizeMap
	}
	lines := loop([]r2.Vec{
		{X: 0, Y: 0},
		{X: width, Y: 0},
		{X: width, Y: height},
		{X: 0, Y: height},
	})
	m := New("box", lines, r2.Vec{X: width / 2, Y: height / 2}, 0)
	m.Bake()
	return m, nil
}

// trackSegments is the number of segments per oval loop.
const trackSegments = 32

// Track returns an oval track between two concentric elliptical loops. The
// start sits midway between the loops at the bottom, heading along +X.
func Track(width, height float64) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrZeroSizeMap
	}
	centre := r2.Vec{X: width / 2, Y: height / 2}
	outerX, outerY := width/2*0.95, height/2*0.95
	innerX, innerY := width/2*0.55, height/2*0.45

	outer := ellipse(centre, outerX, outerY, trackSegments)
	inner := ellipse(centre, innerX, innerY, trackSegments)
	lines := append(loop(outer), loop(inner)...)

	start := r2.Vec{X: centre.X, Y: centre.Y - (outerY+innerY)/2}
	m := New("track", lines, start, 0)
	m.Bake()
	return m, nil
}

func ellipse(centre r2.Vec, rx, ry float64, n int) []r2.Vec {
	pts := make([]r2.Vec, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r2.Vec{X: centre.X + rx*math.Cos(a), Y: centre.Y + ry*math.Sin(a)}
	}
	return pts
}

// loop joins consecutive points into a closed polyline.
func loop(pts []r2.Vec) []systems.Line {
	lines := make([]systems.Line, len(pts))
	for i := range pts {
		lines[i] = systems.Line{A: pts[i], B: pts[(i+1)%len(pts)]}
	}
	return lines
}

type fileLine struct {
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

type filePoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type fileMap struct {
	Name    string     `yaml:"name"`
	Start   filePoint  `yaml:"start"`
	Heading float64    `yaml:"heading"`
	Lines   []fileLine `yaml:"lines"`
}

// Load reads and bakes a YAML map file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file: %w", err)
	}
	var fm fileMap
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("parsing map file: %w", err)
	}
	lines := make([]systems.Line, len(fm.Lines))
	for i, l := range fm.Lines {
		lines[i] = systems.Line{A: r2.Vec{X: l.X1, Y: l.Y1}, B: r2.Vec{X: l.X2, Y: l.Y2}}
	}
	name := fm.Name
	if name == "" {
		name = path
	}
	m := New(name, lines, r2.Vec{X: fm.Start.X, Y: fm.Start.Y}, fm.Heading)
	m.Bake()
	return m, nil
}

// WriteYAML writes the map in the format Load reads.
func (m *Map) WriteYAML(path string) error {
	fm := fileMap{
		Name:    m.Name,
		Start:   filePoint{X: m.Start.X, Y: m.Start.Y},
		Heading: m.StartHeading,
		Lines:   make([]fileLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		fm.Lines[i] = fileLine{X1: l.A.X, Y1: l.A.Y, X2: l.B.X, Y2: l.B.Y}
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshaling map: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing map file: %w", err)
	}
	return nil
}
