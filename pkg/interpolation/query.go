package interpolation

import (
	"fmt"
	"strings"

	"dtfiber/pkg/tensor"
)

// Item names a quantity a probe can produce.
type Item uint

const (
	ItemConfidence Item = iota
	ItemTensor
	ItemEigenvalues
	ItemEigenvectors
	ItemAniso
	ItemTensorGradient
	itemLast
)

var itemNames = [...]string{
	ItemConfidence:     "confidence",
	ItemTensor:         "tensor",
	ItemEigenvalues:    "eigenvalues",
	ItemEigenvectors:   "eigenvectors",
	ItemAniso:          "aniso",
	ItemTensorGradient: "tensor-gradient",
}

func (i Item) String() string {
	if i >= itemLast {
		return fmt.Sprintf("Item(%d)", uint(i))
	}
	return itemNames[i]
}

// Query is the set of quantities a Sampler must produce on every probe.
// Consumers add what they need; the zero value asks for nothing.
type Query struct {
	items uint32
	aniso uint64
}

// Add requests the given items.
func (q *Query) Add(items ...Item) {
	for _, it := range items {
		q.items |= 1 << it
	}
}

// AddAniso requests one anisotropy metric. It implies ItemAniso.
func (q *Query) AddAniso(a tensor.Aniso) {
	q.Add(ItemAniso)
	if a >= 0 && int(a) < 64 {
		q.aniso |= 1 << uint(a)
	}
}

// Has reports whether the item was requested, directly or as a
// prerequisite of another requested item.
func (q Query) Has(it Item) bool {
	return q.resolved().items&(1<<it) != 0
}

// HasAniso reports whether the anisotropy metric was requested.
func (q Query) HasAniso(a tensor.Aniso) bool {
	return a >= 0 && int(a) < 64 && q.aniso&(1<<uint(a)) != 0
}

// Empty reports whether nothing was requested.
func (q Query) Empty() bool {
	return q.items == 0
}

// Aniso lists the requested anisotropy metrics in ascending order.
func (q Query) Aniso() []tensor.Aniso {
	var out []tensor.Aniso
	for a := 0; a < 64; a++ {
		if q.aniso&(1<<uint(a)) != 0 {
			out = append(out, tensor.Aniso(a))
		}
	}
	return out
}

// resolved closes the item set over its prerequisites: anisotropy needs
// eigenvalues, eigen quantities and gradients need the tensor.
func (q Query) resolved() Query {
	if q.items&(1<<ItemAniso) != 0 {
		q.items |= 1 << ItemEigenvalues
	}
	if q.items&(1<<ItemEigenvectors) != 0 {
		q.items |= 1 << ItemEigenvalues
	}
	if q.items&(1<<ItemEigenvalues|1<<ItemTensorGradient) != 0 {
		q.items |= 1 << ItemTensor
	}
	return q
}

// validate checks that every requested anisotropy metric exists.
func (q Query) validate() error {
	for _, a := range q.Aniso() {
		if !a.Valid() {
			return fmt.Errorf("invalid anisotropy metric %d in query", int(a))
		}
	}
	if q.items&(1<<ItemAniso) != 0 && q.aniso == 0 {
		return fmt.Errorf("anisotropy requested without naming a metric")
	}
	return nil
}

func (q Query) String() string {
	r := q.resolved()
	var parts []string
	for it := ItemConfidence; it < itemLast; it++ {
		if r.items&(1<<it) != 0 {
			parts = append(parts, it.String())
		}
	}
	for _, a := range q.Aniso() {
		parts = append(parts, "aniso:"+a.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
