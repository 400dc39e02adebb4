// Package plant maintains the live multibody system layout: which model
// instances exist, which bodies they own, and how many degrees of freedom
// each chain carries. The instance order is the contract every positional
// table downstream aligns to.
package plant

import (
	"github.com/pkg/errors"

	"physid/internal/space"
)

// ErrConfiguration marks defects in how models compose into a system:
// ambiguous or missing free bases, non-quaternion floating bases, and
// identifier collisions.
var ErrConfiguration = errors.New("invalid multibody configuration")

const (
	worldInstance = "world"
	worldBody     = "world"
)

// BaseParam selects how a free base's rotation is parameterized.
type BaseParam int

const (
	BaseQuaternion BaseParam = iota
	BaseRollPitchYaw
)

// Joint connects a parent link to a child link within one model.
type Joint struct {
	Name   string
	Type   string
	Parent string
	Child  string
	DOF    int
}

// ModelInstance is one independently addressable chain in the system.
// Bodies are kept in document order, which is the intrinsic order every
// enumeration preserves.
type ModelInstance struct {
	Name   string
	Bodies []string
	Joints []Joint
	Welded bool
	Base   BaseParam

	roots []string
}

// FreeBase returns the unique unanchored base body of the instance. Welded
// instances have none. An unwelded instance with zero or several root
// candidates cannot name a free base.
func (m *ModelInstance) FreeBase() (string, bool, error) {
	if m.Welded {
		return "", false, nil
	}
	if len(m.roots) != 1 {
		return "", false, errors.Wrapf(ErrConfiguration,
			"model %q has %d free-base candidates, want exactly 1", m.Name, len(m.roots))
	}
	return m.roots[0], true, nil
}

// NumVelocities counts the instance's velocity degrees of freedom,
// including the six spatial rates of an unwelded base.
func (m *ModelInstance) NumVelocities() int {
	n := 0
	for _, j := range m.Joints {
		n += j.DOF
	}
	if !m.Welded {
		n += 6
	}
	return n
}

// NumPositions counts the instance's position coordinates, including the
// seven base coordinates of an unwelded base.
func (m *ModelInstance) NumPositions() int {
	n := 0
	for _, j := range m.Joints {
		n += j.DOF
	}
	if !m.Welded {
		n += 7
	}
	return n
}

func (m *ModelInstance) stateSpace() (space.Space, error) {
	base, free, err := m.FreeBase()
	if err != nil {
		return nil, err
	}
	if !free {
		return space.FixedBase{NumJoints: m.NumVelocities()}, nil
	}
	if m.Base != BaseQuaternion {
		return nil, errors.Wrapf(ErrConfiguration,
			"free base %q of model %q is not quaternion parameterized", base, m.Name)
	}
	return space.FloatingBase{NumJoints: m.NumVelocities() - 6}, nil
}

// BodyRef pairs one body with its unique identifier.
type BodyRef struct {
	Instance   string
	Name       string
	Identifier string
}

// Identifier builds the unique body key. Keys collide only if the system
// configuration itself is defective, which model addition rejects.
func Identifier(instance, body string) string {
	return instance + "_" + body
}

// AddOptions configure how a model joins the topology.
type AddOptions struct {
	// Weld anchors the model's root link to the world, making the
	// instance fixed-base.
	Weld bool
	// Base selects the rotation parameterization of a free base.
	Base BaseParam
}

// Topology is the live system layout: the ordered model instance list with
// the zero-DOF world pseudo-instance first. Instances are added before
// Finalize and immutable afterwards.
type Topology struct {
	instances []*ModelInstance
	byName    map[string]*ModelInstance
	ids       map[string]struct{}
	space     space.Product
	finalized bool
}

// NewTopology seeds the world pseudo-instance.
func NewTopology() *Topology {
	t := &Topology{
		byName: make(map[string]*ModelInstance),
		ids:    make(map[string]struct{}),
	}
	world := &ModelInstance{
		Name:   worldInstance,
		Bodies: []string{worldBody},
		Welded: true,
	}
	t.instances = append(t.instances, world)
	t.byName[world.Name] = world
	t.ids[Identifier(world.Name, worldBody)] = struct{}{}
	return t
}

// AddModelFromString parses a robot description and appends it as the next
// model instance. The name must be unique, every body identifier it
// produces must be new, and every joint must reference declared links.
func (t *Topology) AddModelFromString(name, src string, opts AddOptions) error {
	if t.finalized {
		return errors.Wrapf(ErrConfiguration, "cannot add model %q after finalize", name)
	}
	if _, exists := t.byName[name]; exists {
		return errors.Wrapf(ErrConfiguration, "model %q already added", name)
	}

	robot, err := parseRobot(src)
	if err != nil {
		return errors.Wrapf(err, "model %q", name)
	}

	m := &ModelInstance{
		Name:   name,
		Welded: opts.Weld,
		Base:   opts.Base,
	}
	declared := make(map[string]struct{}, len(robot.Links))
	for _, link := range robot.Links {
		id := Identifier(name, link.Name)
		if _, taken := t.ids[id]; taken {
			return errors.Wrapf(ErrConfiguration, "body identifier %q already registered", id)
		}
		if _, dup := declared[link.Name]; dup {
			return errors.Wrapf(ErrConfiguration, "model %q declares link %q twice", name, link.Name)
		}
		declared[link.Name] = struct{}{}
		m.Bodies = append(m.Bodies, link.Name)
	}

	children := make(map[string]struct{}, len(robot.Joints))
	for _, j := range robot.Joints {
		dof, err := jointDOF(j.Type)
		if err != nil {
			return errors.Wrapf(err, "model %q joint %q", name, j.Name)
		}
		for _, ref := range []string{j.Parent.Link, j.Child.Link} {
			if _, ok := declared[ref]; !ok {
				return errors.Wrapf(ErrConfiguration,
					"model %q joint %q references undeclared link %q", name, j.Name, ref)
			}
		}
		m.Joints = append(m.Joints, Joint{
			Name:   j.Name,
			Type:   j.Type,
			Parent: j.Parent.Link,
			Child:  j.Child.Link,
			DOF:    dof,
		})
		children[j.Child.Link] = struct{}{}
	}
	for _, body := range m.Bodies {
		if _, isChild := children[body]; !isChild {
			m.roots = append(m.roots, body)
		}
	}

	for _, body := range m.Bodies {
		t.ids[Identifier(name, body)] = struct{}{}
	}
	t.instances = append(t.instances, m)
	t.byName[name] = m
	return nil
}

// Finalize freezes the instance list and builds the composite state space
// in instance order. Calling it again returns the same space.
func (t *Topology) Finalize() (space.Product, error) {
	if t.finalized {
		return t.space, nil
	}
	factors := make([]space.Space, 0, len(t.instances))
	for _, m := range t.instances {
		f, err := m.stateSpace()
		if err != nil {
			return space.Product{}, err
		}
		factors = append(factors, f)
	}
	t.space = space.NewProduct(factors...)
	t.finalized = true
	return t.space, nil
}

// StateSpace returns the composite space built by Finalize.
func (t *Topology) StateSpace() (space.Product, bool) {
	return t.space, t.finalized
}

// Instances lists the model instances in state-vector order.
func (t *Topology) Instances() []*ModelInstance {
	return append([]*ModelInstance(nil), t.instances...)
}

// InstanceByName resolves a model instance by exact name.
func (t *Topology) InstanceByName(name string) (*ModelInstance, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// HasInstance reports whether a model instance with the exact name exists.
func (t *Topology) HasInstance(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// InstanceBodies returns the body names of an instance in intrinsic order,
// or nil when the instance does not exist.
func (t *Topology) InstanceBodies(name string) []string {
	m, ok := t.byName[name]
	if !ok {
		return nil
	}
	return append([]string(nil), m.Bodies...)
}

// EnumerateBodies lists every body with its unique identifier, instance
// order first, intrinsic body order within an instance. Repeated calls on
// an unchanged topology return identical sequences; entry index is the
// positional contract downstream parameter tables align to.
func (t *Topology) EnumerateBodies() []BodyRef {
	var out []BodyRef
	for _, m := range t.instances {
		for _, body := range m.Bodies {
			out = append(out, BodyRef{
				Instance:   m.Name,
				Name:       body,
				Identifier: Identifier(m.Name, body),
			})
		}
	}
	return out
}

// InertialBodies is EnumerateBodies with the world pseudo-instance
// excluded.
func (t *Topology) InertialBodies() []BodyRef {
	all := t.EnumerateBodies()
	out := make([]BodyRef, 0, len(all))
	for _, ref := range all {
		if ref.Instance == worldInstance {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// InertialBodyIDs returns just the identifiers of InertialBodies.
func (t *Topology) InertialBodyIDs() []string {
	refs := t.InertialBodies()
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.Identifier
	}
	return out
}
