// Package env is the per-translation-unit environment: name→type
// bindings, record/variant registries, and location tracking (spec.md §3
// Lifecycle: "Type, record, and variant definitions live in the per-
// translation environment from parsing through emission").
package env

import (
	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/types"
)

// RecordDef is a registered record type: ordered, unique field labels
// (spec.md §3 invariant).
type RecordDef struct {
	Name   string
	Fields []ast.FieldDecl // declaration order is authoritative
}

func (r *RecordDef) FieldIndex(name string) (int, bool) {
	for i, f := range r.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// VariantDef is a registered variant type: ordered, unique constructor
// labels (spec.md §3 invariant); order determines the Left/Right
// binarization path (§4.2, §8 "Record/variant encoding is stable under
// declaration order").
type VariantDef struct {
	Name  string
	Ctors []ast.CtorDecl
}

func (v *VariantDef) CtorIndex(name string) (int, bool) {
	for i, c := range v.Ctors {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Env is a mutable registry plus an immutable-by-convention variable
// environment (name→type). Variable scoping uses explicit push/pop over a
// slice, matching DESIGN NOTES §9 ("a hashmap with explicit push/pop is
// acceptable if the generator is structured recursively").
type Env struct {
	Records  map[string]*RecordDef
	Variants map[string]*VariantDef

	// fieldOwner maps a field label to the record name(s) that declare it,
	// used to detect the "ambiguous field names across two record types"
	// type error (§4.1) when a projection can't be resolved from context.
	fieldOwner map[string][]string
	ctorOwner  map[string][]string

	vars []binding
}

type binding struct {
	name string
	ty   *types.Type
}

// New builds an empty environment.
func New() *Env {
	return &Env{
		Records:    map[string]*RecordDef{},
		Variants:   map[string]*VariantDef{},
		fieldOwner: map[string][]string{},
		ctorOwner:  map[string][]string{},
	}
}

// RegisterRecord adds a record declaration to the registry.
func (e *Env) RegisterRecord(d ast.RecordDecl) {
	e.Records[d.Name] = &RecordDef{Name: d.Name, Fields: d.Fields}
	for _, f := range d.Fields {
		e.fieldOwner[f.Name] = append(e.fieldOwner[f.Name], d.Name)
	}
}

// RegisterVariant adds a variant declaration to the registry.
func (e *Env) RegisterVariant(d ast.VariantDecl) {
	e.Variants[d.Name] = &VariantDef{Name: d.Name, Ctors: d.Ctors}
	for _, c := range d.Ctors {
		e.ctorOwner[c.Name] = append(e.ctorOwner[c.Name], d.Name)
	}
}

// FieldOwners returns every record name declaring a field of this label.
func (e *Env) FieldOwners(field string) []string { return e.fieldOwner[field] }

// CtorOwners returns every variant name declaring a constructor of this
// label.
func (e *Env) CtorOwners(ctor string) []string { return e.ctorOwner[ctor] }

// Push introduces a new binding, returning a token to Pop back to.
func (e *Env) Push(name string, ty *types.Type) int {
	mark := len(e.vars)
	e.vars = append(e.vars, binding{name, ty})
	return mark
}

// PopTo restores the environment to a mark returned by Push.
func (e *Env) PopTo(mark int) {
	e.vars = e.vars[:mark]
}

// Mark returns the current depth, for save/restore around a branch.
func (e *Env) Mark() int { return len(e.vars) }

// Lookup finds the innermost binding for name.
func (e *Env) Lookup(name string) (*types.Type, bool) {
	for i := len(e.vars) - 1; i >= 0; i-- {
		if e.vars[i].name == name {
			return e.vars[i].ty, true
		}
	}
	return nil, false
}

// UnboundVar builds the located error for an unresolved variable.
func UnboundVar(at diag.Loc, name string) *diag.Error {
	return diag.New(diag.Semantic, diag.UnboundVar, at, "unbound variable %q", name)
}
