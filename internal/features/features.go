// Package features computes joint-level kinematic features (angles and
// their derivatives) from marker trajectories, through a registry of named
// feature functions validated at registration time.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/gaitlab/neurogait/internal/gait"
)

// Skeleton declares each joint as the ordered triple of markers spanning
// it: proximal, vertex, distal. The angle is measured at the vertex.
type Skeleton map[string][3]string

// Func computes one per-frame feature series from the three joint marker
// trajectories. frames[i] holds the proximal, vertex and distal positions
// at frame i.
type Func func(frames [][3][3]float64, fs float64) []float64

// Registry maps feature names to their functions. Entries are validated
// when registered, not when called.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry preloaded with the built-in joint
// features: angle, angle_velocity and angle_acceleration.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	// Built-ins cannot collide with an empty registry.
	_ = r.Register("angle", angleFeature)
	_ = r.Register("angle_velocity", angleVelocityFeature)
	_ = r.Register("angle_acceleration", angleAccelerationFeature)
	return r
}

// Register adds a named feature function. The name must be non-empty, the
// function non-nil and the name unused.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("feature name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("feature %q: function must not be nil", name)
	}
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("feature %q is already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Names returns the registered feature names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Func, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no feature named %q, registered features: %v", name, r.Names())
	}
	return fn, nil
}

// Table holds computed feature columns keyed "joint_feature".
type Table struct {
	columns []string
	data    map[string][]float64
}

// Columns returns the column names in computation order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Series returns one feature column.
func (t *Table) Series(column string) ([]float64, error) {
	s, ok := t.data[column]
	if !ok {
		return nil, fmt.Errorf("no feature column %q, available: %v", column, t.columns)
	}
	return s, nil
}

func (t *Table) add(column string, series []float64) {
	if t.data == nil {
		t.data = make(map[string][]float64)
	}
	if _, exists := t.data[column]; !exists {
		t.columns = append(t.columns, column)
	}
	t.data[column] = series
}

// Extract computes the named features for every joint of the skeleton and
// returns them as a feature table with one "joint_feature" column each.
// Joints are processed in sorted order for deterministic output.
func Extract(ts *gait.TrajectorySet, skeleton Skeleton, names []string, reg *Registry) (*Table, error) {
	joints := make([]string, 0, len(skeleton))
	for joint := range skeleton {
		joints = append(joints, joint)
	}
	sort.Strings(joints)

	table := &Table{}
	for _, name := range names {
		fn, err := reg.lookup(name)
		if err != nil {
			return nil, err
		}
		for _, joint := range joints {
			frames, err := jointFrames(ts, skeleton[joint])
			if err != nil {
				return nil, fmt.Errorf("joint %q: %w", joint, err)
			}
			table.add(fmt.Sprintf("%s_%s", joint, name), fn(frames, ts.FS()))
		}
	}
	return table, nil
}

// jointFrames gathers the per-frame positions of the three joint markers.
func jointFrames(ts *gait.TrajectorySet, markers [3]string) ([][3][3]float64, error) {
	n := ts.Len()
	frames := make([][3][3]float64, n)
	for m, marker := range markers {
		for i := 0; i < n; i++ {
			p, err := ts.Frame(marker, i)
			if err != nil {
				return nil, err
			}
			frames[i][m] = p
		}
	}
	return frames, nil
}

// angleFeature returns the angle in degrees at the joint vertex per frame.
func angleFeature(frames [][3][3]float64, _ float64) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = vertexAngle(f[0], f[1], f[2])
	}
	return out
}

func angleVelocityFeature(frames [][3][3]float64, fs float64) []float64 {
	return gradient(angleFeature(frames, fs), 1/fs)
}

func angleAccelerationFeature(frames [][3][3]float64, fs float64) []float64 {
	return gradient(gradient(angleFeature(frames, fs), 1/fs), 1/fs)
}

// vertexAngle computes the angle at b between rays ba and bc, in degrees.
func vertexAngle(a, b, c [3]float64) float64 {
	var ba, bc [3]float64
	for d := 0; d < 3; d++ {
		ba[d] = a[d] - b[d]
		bc[d] = c[d] - b[d]
	}
	dot := ba[0]*bc[0] + ba[1]*bc[1] + ba[2]*bc[2]
	na := math.Sqrt(ba[0]*ba[0] + ba[1]*ba[1] + ba[2]*ba[2])
	nc := math.Sqrt(bc[0]*bc[0] + bc[1]*bc[1] + bc[2]*bc[2])
	if na == 0 || nc == 0 {
		return math.NaN()
	}
	cos := dot / (na * nc)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// gradient returns central differences with one-sided differences at the
// boundaries, for samples spaced h apart.
func gradient(v []float64, h float64) []float64 {
	n := len(v)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (v[1] - v[0]) / h
	out[n-1] = (v[n-1] - v[n-2]) / h
	for i := 1; i < n-1; i++ {
		out[i] = (v[i+1] - v[i-1]) / (2 * h)
	}
	return out
}
