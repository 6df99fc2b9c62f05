// Package graph holds the static stop/path network of one map.
package graph

import (
	"errors"
	"fmt"

	"github.com/example/transpool/internal/models"
)

const (
	MinMapSize = 6
	MaxMapSize = 100
)

var (
	ErrMapDimensions         = errors.New("map dimensions out of range")
	ErrStopDuplication       = errors.New("stop name already exists")
	ErrOutOfBounds           = errors.New("stop coordinate out of map bounds")
	ErrCoordinateDuplication = errors.New("stop coordinate already taken")
	ErrUnknownStop           = errors.New("unknown stop")
	ErrPathDuplication       = errors.New("path already exists")
	ErrInvalidPath           = errors.New("path length and max speed must be positive")
)

type Stop struct {
	Name string
	X, Y int
}

// Path is a directed edge. A two-way path is stored as two Paths.
type Path struct {
	Source          string
	Destination     string
	Length          int
	FuelConsumption float64
	MaxSpeed        int
	OneWay          bool
}

// TravelTime returns minutes, truncated down.
func (p Path) TravelTime() int {
	return 60 * p.Length / p.MaxSpeed
}

func (p Path) reversed() Path {
	p.Source, p.Destination = p.Destination, p.Source
	return p
}

type edge struct{ from, to string }

type coord struct{ x, y int }

// Map is built once and then shared read-only; it carries no lock.
type Map struct {
	width, length int

	stops     map[string]Stop
	stopOrder []string
	taken     map[coord]string

	edges map[edge]Path
	paths []Path
}

func New(width, length int) (*Map, error) {
	if width < MinMapSize || width > MaxMapSize || length < MinMapSize || length > MaxMapSize {
		return nil, fmt.Errorf("%dx%d: %w", width, length, ErrMapDimensions)
	}
	return &Map{
		width:  width,
		length: length,
		stops:  make(map[string]Stop),
		taken:  make(map[coord]string),
		edges:  make(map[edge]Path),
	}, nil
}

// Load builds a map from a parsed descriptor. Either the whole map is
// returned or nothing is.
func Load(desc models.MapDescriptor) (*Map, error) {
	m, err := New(desc.Width, desc.Length)
	if err != nil {
		return nil, err
	}
	for _, s := range desc.Stops {
		if err := m.AddStop(s.Name, s.X, s.Y); err != nil {
			return nil, err
		}
	}
	for _, p := range desc.Paths {
		if err := m.AddPath(p.From, p.To, p.Length, p.FuelConsumption, p.SpeedLimit, p.OneWay); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Map) AddStop(name string, x, y int) error {
	if _, ok := m.stops[name]; ok {
		return fmt.Errorf("stop %q: %w", name, ErrStopDuplication)
	}
	if x < 0 || y < 0 || x > m.width || y > m.length {
		return fmt.Errorf("stop %q at (%d,%d): %w", name, x, y, ErrOutOfBounds)
	}
	c := coord{x, y}
	if other, ok := m.taken[c]; ok {
		return fmt.Errorf("stop %q at (%d,%d) collides with %q: %w", name, x, y, other, ErrCoordinateDuplication)
	}
	m.stops[name] = Stop{Name: name, X: x, Y: y}
	m.stopOrder = append(m.stopOrder, name)
	m.taken[c] = name
	return nil
}

// AddPath inserts src->dst, and dst->src as well unless oneWay is set. The
// unordered pair {src,dst} may only be added once.
func (m *Map) AddPath(src, dst string, length int, fuel float64, maxSpeed int, oneWay bool) error {
	for _, name := range []string{src, dst} {
		if _, ok := m.stops[name]; !ok {
			return fmt.Errorf("path %s->%s references %q: %w", src, dst, name, ErrUnknownStop)
		}
	}
	if length <= 0 || maxSpeed <= 0 {
		return fmt.Errorf("path %s->%s: %w", src, dst, ErrInvalidPath)
	}
	_, fwd := m.edges[edge{src, dst}]
	_, rev := m.edges[edge{dst, src}]
	if fwd || rev {
		return fmt.Errorf("path %s->%s: %w", src, dst, ErrPathDuplication)
	}

	p := Path{
		Source:          src,
		Destination:     dst,
		Length:          length,
		FuelConsumption: fuel,
		MaxSpeed:        maxSpeed,
		OneWay:          oneWay,
	}
	if !oneWay {
		r := p.reversed()
		m.edges[edge{dst, src}] = r
		m.paths = append(m.paths, r)
	}
	m.edges[edge{src, dst}] = p
	m.paths = append(m.paths, p)
	return nil
}

// FindPath returns the directed edge src->dst.
func (m *Map) FindPath(src, dst string) (Path, bool) {
	p, ok := m.edges[edge{src, dst}]
	return p, ok
}

func (m *Map) HasStop(name string) bool {
	_, ok := m.stops[name]
	return ok
}

// Stops returns stops in insertion order.
func (m *Map) Stops() []Stop {
	out := make([]Stop, 0, len(m.stopOrder))
	for _, name := range m.stopOrder {
		out = append(out, m.stops[name])
	}
	return out
}

// Paths returns every directed edge in insertion order.
func (m *Map) Paths() []Path {
	out := make([]Path, len(m.paths))
	copy(out, m.paths)
	return out
}

func (m *Map) Snapshot() models.MapDTO {
	dto := models.MapDTO{
		Width:  m.width,
		Length: m.length,
		Stops:  make([]models.StopDTO, 0, len(m.stopOrder)),
		Paths:  make([]models.PathDTO, 0, len(m.paths)),
		Grid:   make([][]string, m.length+1),
	}
	for y := range dto.Grid {
		dto.Grid[y] = make([]string, m.width+1)
	}
	for _, s := range m.Stops() {
		dto.Stops = append(dto.Stops, models.StopDTO{Name: s.Name, X: s.X, Y: s.Y})
		dto.Grid[s.Y][s.X] = s.Name
	}
	for _, p := range m.paths {
		dto.Paths = append(dto.Paths, models.PathDTO{
			From:            p.Source,
			To:              p.Destination,
			Length:          p.Length,
			FuelConsumption: p.FuelConsumption,
			SpeedLimit:      p.MaxSpeed,
			OneWay:          p.OneWay,
			TravelMinutes:   p.TravelTime(),
		})
	}
	return dto
}
