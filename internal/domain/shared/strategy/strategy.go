// Package strategy declares the pluggable behaviors that vary by business vertical.
package strategy

// Strategy is anything a registry can bind to a vertical tag
type Strategy interface {
	Name() string
	Description() string
}

// Descriptor names a strategy. Concrete strategies embed it.
type Descriptor struct {
	name        string
	description string
}

// Describe creates a Descriptor
func Describe(name, description string) Descriptor {
	return Descriptor{name: name, description: description}
}

func (d Descriptor) Name() string        { return d.name }
func (d Descriptor) Description() string { return d.description }
