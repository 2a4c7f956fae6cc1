package parser

import (
	"log/slog"
	"strings"

	"srx-config-parser/internal/model"
)

type objectKey struct {
	namespace string
	zone      string
	name      string
}

// Repository keeps every parsed object in insertion order. Names are unique
// per namespace and zone; address names may repeat across zones.
type Repository struct {
	objects []model.Object
	index   map[objectKey]model.Object
	logger  *slog.Logger
}

func NewRepository(logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		index:  make(map[objectKey]model.Object),
		logger: logger,
	}
}

func keyOf(kind model.Kind, zone, name string) objectKey {
	k := objectKey{namespace: kind.Namespace(), name: strings.ToLower(name)}
	// Only addresses are scoped by zone.
	if k.namespace == model.KindHost.Namespace() {
		k.zone = strings.ToLower(zone)
	}
	return k
}

// Add appends obj unless an object with the same name already exists in its
// namespace. It reports whether obj was stored.
func (r *Repository) Add(obj model.Object) bool {
	meta := obj.Meta()
	key := keyOf(obj.Kind(), meta.Zone, meta.Name)
	if existing, ok := r.index[key]; ok {
		r.logger.Warn("Duplicate object skipped",
			"kind", obj.Kind(), "name", meta.Name, "zone", meta.Zone, "line", meta.Line,
			"first_line", existing.Meta().Line)
		return false
	}
	r.index[key] = obj
	r.objects = append(r.objects, obj)
	return true
}

// Find looks an object up by the namespace of kind. zone is only used for
// address kinds.
func (r *Repository) Find(kind model.Kind, zone, name string) (model.Object, bool) {
	obj, ok := r.index[keyOf(kind, zone, name)]
	return obj, ok
}

func (r *Repository) Has(kind model.Kind, zone, name string) bool {
	_, ok := r.Find(kind, zone, name)
	return ok
}

func (r *Repository) Objects() []model.Object {
	return r.objects
}

func (r *Repository) Len() int {
	return len(r.objects)
}

// ByKind returns the objects of the given kinds in insertion order.
func (r *Repository) ByKind(kinds ...model.Kind) []model.Object {
	want := make(map[model.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []model.Object
	for _, obj := range r.objects {
		if want[obj.Kind()] {
			out = append(out, obj)
		}
	}
	return out
}

// Counts returns the number of stored objects per kind.
func (r *Repository) Counts() map[model.Kind]int {
	counts := make(map[model.Kind]int)
	for _, obj := range r.objects {
		counts[obj.Kind()]++
	}
	return counts
}

// Select returns every object of concrete type T in insertion order.
func Select[T model.Object](r *Repository) []T {
	var out []T
	for _, obj := range r.objects {
		if v, ok := obj.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
