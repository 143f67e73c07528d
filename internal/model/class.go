package model

import (
	"fmt"

	"github.com/Veraticus/motorsense/internal/common"
)

// Motor operating states known to the default model.
const (
	ClassMotorOff       = "motorOFF"
	ClassMotorOn        = "motorON"
	ClassMotorOnNoFan   = "motorON_NoFan"
	ClassMotorOnBadFan  = "motorON_BadFan"
	DefaultClassesCount = 4
)

// DefaultClassNames returns the class index to name mapping the classifier was trained with.
func DefaultClassNames() []string {
	return []string{ClassMotorOff, ClassMotorOn, ClassMotorOnNoFan, ClassMotorOnBadFan}
}

// ClassSet is a bijective mapping between class indexes and class names.
type ClassSet struct {
	index map[string]int
	names []string
}

// NewClassSet builds a ClassSet from names ordered by class index.
func NewClassSet(names []string) (*ClassSet, error) {
	if len(names) == 0 {
		return nil, common.NewConfigError("classes", "at least one class is required")
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, common.NewConfigError("classes", "class %d has an empty name", i)
		}
		if prev, ok := index[name]; ok {
			return nil, common.NewConfigError("classes", "duplicate class %q at indexes %d and %d", name, prev, i)
		}
		index[name] = i
	}

	copied := make([]string, len(names))
	copy(copied, names)

	return &ClassSet{names: copied, index: index}, nil
}

// DefaultClassSet returns the four motor states.
func DefaultClassSet() *ClassSet {
	set, err := NewClassSet(DefaultClassNames())
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of classes.
func (c *ClassSet) Len() int {
	return len(c.names)
}

// Name returns the class name for an index.
func (c *ClassSet) Name(i int) (string, error) {
	if i < 0 || i >= len(c.names) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", i, len(c.names))
	}
	return c.names[i], nil
}

// Index returns the class index for a name.
func (c *ClassSet) Index(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return -1, fmt.Errorf("unknown class %q", name)
	}
	return i, nil
}

// Names returns a copy of the class names in index order.
func (c *ClassSet) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Validate checks that the set matches the classifier's class count.
func (c *ClassSet) Validate(expected int) error {
	if c.Len() != expected {
		return common.NewConfigError("classes", "have %d classes, classifier produces %d", c.Len(), expected)
	}
	return nil
}
