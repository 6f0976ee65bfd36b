// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "strings"

// varScope tracks local variable types and straight-line assignments inside
// one function body. Scopes chain to the enclosing body for lookups.
type varScope struct {
	parent  *varScope
	types   map[string]string
	assigns map[string]string
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{
		parent:  parent,
		types:   make(map[string]string),
		assigns: make(map[string]string),
	}
}

func (v *varScope) setType(name, typeText string) { v.types[name] = typeText }

func (v *varScope) setAssign(name, symbol string) { v.assigns[name] = symbol }

func (v *varScope) typeOf(name string) (string, bool) {
	for s := v; s != nil; s = s.parent {
		if t, ok := s.types[name]; ok {
			return t, true
		}
	}
	return "", false
}

func (v *varScope) assignOf(name string) (string, bool) {
	for s := v; s != nil; s = s.parent {
		if a, ok := s.assigns[name]; ok {
			return a, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Reference pass
// ---------------------------------------------------------------------------

// collectReferences walks the tree a second time, after the entity tables
// are complete, and emits calls, extends, and operator relationships.
// src is the innermost enclosing entity, nil at file scope.
func (w *walker) collectReferences(id NodeID, src *Entity, vars *varScope) {
	kind := w.t.Kind(id)
	switch {
	case kind == "function_definition":
		if ent, ok := w.entityAt[id]; ok {
			src = ent
		}
		vars = newVarScope(vars)
	case kind == "class_specifier" || kind == "struct_specifier":
		if ent, ok := w.entityAt[id]; ok {
			if bc := w.t.FirstChildOfKind(id, "base_class_clause"); bc != InvalidNode {
				w.emitExtends(ent, bc)
			}
			src = ent
		}
	case kind == "namespace_definition" || kind == "enum_specifier":
		if ent, ok := w.entityAt[id]; ok {
			src = ent
		}
	case kind == "declaration" || kind == "field_declaration":
		w.trackDeclaration(id, vars)
	case kind == "assignment_expression":
		w.trackAssignment(id, vars)
	case kind == "call_expression":
		w.resolveCall(id, src, vars)
	case kind == "new_expression":
		w.resolveNew(id, src, vars)
	case kind == "binary_expression":
		w.resolveOperator(id, src, vars)
	}
	for c := range w.t.Children(id) {
		w.collectReferences(c, src, vars)
	}
}

func (w *walker) trackDeclaration(id NodeID, vars *varScope) {
	typeText := ""
	if tn := w.t.ChildByField(id, "type"); tn != InvalidNode {
		typeText = w.t.Text(tn)
	}
	for c := range w.t.Children(id) {
		if w.t.Field(c) != "declarator" {
			continue
		}
		d := c
		var value NodeID = InvalidNode
		if w.t.Kind(d) == "init_declarator" {
			value = w.t.ChildByField(d, "value")
			d = w.t.ChildByField(d, "declarator")
		}
		name := w.declaratorIdentifier(d)
		if name == "" {
			continue
		}
		if typeText != "" {
			vars.setType(name, typeText)
		}
		if value != InvalidNode {
			if sym := w.valueSymbol(value); sym != "" {
				vars.setAssign(name, sym)
			}
		}
	}
}

func (w *walker) trackAssignment(id NodeID, vars *varScope) {
	left := w.t.ChildByField(id, "left")
	right := w.t.ChildByField(id, "right")
	if left == InvalidNode || right == InvalidNode {
		return
	}
	if w.t.Kind(left) != "identifier" {
		return
	}
	if sym := w.valueSymbol(right); sym != "" {
		vars.setAssign(w.t.Text(left), sym)
	}
}

// declaratorIdentifier descends declarator wrappers to the declared name.
func (w *walker) declaratorIdentifier(d NodeID) string {
	for d != InvalidNode {
		switch w.t.Kind(d) {
		case "identifier", "field_identifier":
			return w.t.Text(d)
		}
		d = w.t.ChildByField(d, "declarator")
	}
	return ""
}

// valueSymbol extracts the symbol a simple initializer or assignment names:
// a bare identifier, a qualified name, or an address-of expression.
func (w *walker) valueSymbol(v NodeID) string {
	switch w.t.Kind(v) {
	case "identifier", "qualified_identifier", "field_identifier":
		return normalizeTemplateArgs(w.t.Text(v))
	case "pointer_expression":
		if arg := w.t.ChildByField(v, "argument"); arg != InvalidNode {
			return w.valueSymbol(arg)
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Call resolution
// ---------------------------------------------------------------------------

func (w *walker) resolveCall(id NodeID, src *Entity, vars *varScope) {
	fn := w.t.ChildByField(id, "function")
	if fn == InvalidNode {
		return
	}
	loc := w.location(id)
	switch w.t.Kind(fn) {
	case "identifier":
		w.resolveNamedCall(w.t.Text(fn), src, vars, loc)
	case "qualified_identifier":
		w.resolveQualifiedCall(normalizeTemplateArgs(w.t.Text(fn)), src, loc)
	case "field_expression":
		w.resolveMemberCall(fn, src, vars, loc)
	case "template_function":
		name := w.t.Text(fn)
		if n := w.t.ChildByField(fn, "name"); n != InvalidNode {
			name = w.t.Text(n)
		}
		w.resolveNamedCall(normalizeTemplateArgs(name), src, vars, loc)
	default:
		// Calls through arbitrary expressions keep the expression text as a
		// symbolic target.
		w.emitCall(src, nil, w.t.Text(fn), ConfidenceUnknown, loc)
	}
}

// resolveNamedCall resolves an unqualified callee name in priority order:
// scope chain, callable variable, include mapping, symbolic fallback.
func (w *walker) resolveNamedCall(name string, src *Entity, vars *varScope, loc Location) {
	if name == "" {
		return
	}
	sep := w.scope.Separator()

	if ent := w.lookupCallable(w.candidateQNames(name, src)); ent != nil {
		w.emitCall(src, ent, ent.QualifiedName, ConfidenceExact, loc)
		return
	}

	// Call through a variable: prefer the last straight-line assignment
	// (function pointers), then the variable's callable type (functors).
	if assigned, ok := vars.assignOf(name); ok {
		target := assigned
		ent := w.lookupCallable(w.candidateQNames(assigned, src))
		if ent != nil {
			target = ent.QualifiedName
		}
		w.emitCall(src, ent, target, ConfidenceUnknown, loc)
		return
	}
	if typeText := w.typeOfVar(name, src, vars); typeText != "" {
		base := cleanTypeName(typeText)
		// A variable of function-pointer type called without a visible
		// assignment stays a symbolic target.
		for _, cand := range w.candidateQNames(base, src) {
			if w.fnPtrAliases[cand] {
				w.emitCall(src, nil, name, ConfidenceUnknown, loc)
				return
			}
		}
		if q := w.resolveTypeQName(base, src); q != "" {
			target := q + sep + "operator()"
			ent := w.lookupCallable([]string{target})
			w.emitCall(src, ent, target, ConfidenceUnknown, loc)
			return
		}
		w.emitCall(src, nil, base+sep+"operator()", ConfidenceUnknown, loc)
		return
	}

	if _, ok := w.includes[name]; ok {
		ext := w.externalEntity(name, loc.StartLine)
		w.emitCall(src, ext, name, ConfidenceProbable, loc)
		return
	}

	w.emitCall(src, nil, name, ConfidenceUnknown, loc)
}

func (w *walker) resolveQualifiedCall(full string, src *Entity, loc Location) {
	if full == "" {
		return
	}
	sep := w.scope.Separator()
	if ent := w.lookupCallable(w.candidateQNames(full, src)); ent != nil {
		w.emitCall(src, ent, ent.QualifiedName, ConfidenceExact, loc)
		return
	}
	head, _, _ := strings.Cut(full, sep)
	if w.prof.IsSystemNamespace(head) {
		ext := w.externalEntity(full, loc.StartLine)
		w.emitCall(src, ext, full, ConfidenceProbable, loc)
		return
	}
	if _, ok := w.includes[head]; ok {
		ext := w.externalEntity(full, loc.StartLine)
		w.emitCall(src, ext, full, ConfidenceProbable, loc)
		return
	}
	if ent := w.uniqueSimpleCallable(lastSegment(full, sep)); ent != nil {
		w.emitCall(src, ent, ent.QualifiedName, ConfidenceProbable, loc)
		return
	}
	w.emitCall(src, nil, full, ConfidenceProbable, loc)
}

func (w *walker) resolveMemberCall(fn NodeID, src *Entity, vars *varScope, loc Location) {
	fieldNode := w.t.ChildByField(fn, "field")
	recvNode := w.t.ChildByField(fn, "argument")
	if fieldNode == InvalidNode || recvNode == InvalidNode {
		return
	}
	method := normalizeTemplateArgs(w.t.Text(fieldNode))
	if method == "" {
		return
	}
	sep := w.scope.Separator()

	switch w.t.Kind(recvNode) {
	case "this":
		owner := ownerQName(src, sep)
		if owner != "" {
			target := owner + sep + method
			ent := w.lookupCallable([]string{target})
			w.emitCall(src, ent, target, ConfidenceProbable, loc)
			return
		}
	case "identifier":
		recvName := w.t.Text(recvNode)
		if typeText := w.typeOfVar(recvName, src, vars); typeText != "" {
			base := cleanTypeName(typeText)
			head, _, _ := strings.Cut(base, sep)
			if w.prof.IsSystemNamespace(head) {
				ext := w.externalEntity(base+sep+method, loc.StartLine)
				w.emitCall(src, ext, base+sep+method, ConfidenceProbable, loc)
				return
			}
			if q := w.resolveTypeQName(base, src); q != "" {
				target := q + sep + method
				ent := w.lookupCallable([]string{target})
				w.emitCall(src, ent, target, ConfidenceProbable, loc)
				return
			}
			w.emitCall(src, nil, base+sep+method, ConfidenceProbable, loc)
			return
		}
	}

	// Receiver type unknown: a unique visible method with this simple name
	// is the probable target.
	if ent := w.uniqueSimpleCallable(method); ent != nil {
		w.emitCall(src, ent, ent.QualifiedName, ConfidenceProbable, loc)
		return
	}
	w.emitCall(src, nil, normalizeTemplateArgs(w.t.Text(fn)), ConfidenceUnknown, loc)
}

func (w *walker) resolveNew(id NodeID, src *Entity, vars *varScope) {
	typeNode := w.t.ChildByField(id, "type")
	if typeNode == InvalidNode {
		return
	}
	loc := w.location(id)
	base := normalizeTemplateArgs(w.t.Text(typeNode))
	if base == "" {
		return
	}
	sep := w.scope.Separator()
	head, _, _ := strings.Cut(base, sep)
	if w.prof.IsSystemNamespace(head) {
		target := base + sep + lastSegment(base, sep)
		ext := w.externalEntity(target, loc.StartLine)
		w.emitCall(src, ext, target, ConfidenceProbable, loc)
		return
	}
	if q := w.resolveTypeQName(base, src); q != "" {
		target := q + sep + lastSegment(q, sep)
		ent := w.lookupCallable([]string{target})
		conf := ConfidenceProbable
		if ent != nil {
			conf = ConfidenceExact
		}
		w.emitCall(src, ent, target, conf, loc)
		return
	}
	w.emitCall(src, nil, base+sep+lastSegment(base, sep), ConfidenceUnknown, loc)
}

// resolveOperator emits a call for an overloaded binary operator when the
// left operand's type is statically known. The synthesized target is the
// operand type qualified with "operator<op>".
func (w *walker) resolveOperator(id NodeID, src *Entity, vars *varScope) {
	opNode := w.t.ChildByField(id, "operator")
	left := w.t.ChildByField(id, "left")
	if opNode == InvalidNode || left == InvalidNode {
		return
	}
	if w.t.Kind(left) != "identifier" {
		return
	}
	typeText := w.typeOfVar(w.t.Text(left), src, vars)
	if typeText == "" {
		return
	}
	op := w.t.Text(opNode)
	base := cleanTypeName(typeText)
	sep := w.scope.Separator()
	loc := w.location(id)
	head, _, _ := strings.Cut(base, sep)
	if w.prof.IsSystemNamespace(head) {
		target := base + sep + "operator" + op
		ext := w.externalEntity(target, loc.StartLine)
		w.emitCall(src, ext, target, ConfidenceProbable, loc)
		return
	}
	if q := w.resolveTypeQName(base, src); q != "" {
		target := q + sep + "operator" + op
		ent := w.lookupCallable([]string{target})
		conf := ConfidenceUnknown
		if ent != nil {
			conf = ConfidenceProbable
		}
		w.emitCall(src, ent, target, conf, loc)
		return
	}
	w.emitCall(src, nil, base+sep+"operator"+op, ConfidenceUnknown, loc)
}

// ---------------------------------------------------------------------------
// Extends resolution
// ---------------------------------------------------------------------------

func (w *walker) emitExtends(derived *Entity, clause NodeID) {
	defaultAccess := "private"
	if derived.Kind == EntityKindStruct {
		defaultAccess = "public"
	}
	access := defaultAccess
	order := 0
	for c := range w.t.Children(clause) {
		switch w.t.Kind(c) {
		case "access_specifier":
			access = w.t.Text(c)
		case "type_identifier", "qualified_identifier", "template_type":
			raw := w.t.Text(c)
			base := normalizeTemplateArgs(raw)
			if base == "" {
				continue
			}
			target, name, conf := w.resolveTypeRef(base, derived)
			if raw != base {
				// Template-instantiation bases keep their argument list as
				// written; only the template name takes part in resolution.
				name = raw
			}
			rel := Relationship{
				Kind:       RelationshipExtends,
				SourceID:   derived.ID,
				TargetName: name,
				Confidence: conf,
				Access:     access,
				BaseOrder:  order,
				Location:   w.location(c),
			}
			if target != nil {
				rel.TargetID = target.ID
			}
			w.res.Relationships = append(w.res.Relationships, rel)
			order++
			// An unannotated base after an annotated one reverts to the
			// aggregate's default access.
			access = defaultAccess
		}
	}
}

// resolveTypeRef resolves a type name used as a base class or receiver
// type against the file's entity tables, includes, and system namespaces.
func (w *walker) resolveTypeRef(name string, src *Entity) (*Entity, string, Confidence) {
	sep := w.scope.Separator()
	for _, cand := range w.candidateQNames(name, src) {
		for _, e := range w.byQualified[cand] {
			switch e.Kind {
			case EntityKindClass, EntityKindStruct, EntityKindEnum, EntityKindTypeAlias:
				return e, e.QualifiedName, ConfidenceExact
			}
		}
	}
	head, _, qualified := strings.Cut(name, sep)
	if w.prof.IsSystemNamespace(head) {
		ext := w.externalEntity(name, 0)
		return ext, name, ConfidenceProbable
	}
	if _, ok := w.includes[head]; ok {
		ext := w.externalEntity(name, 0)
		return ext, name, ConfidenceProbable
	}
	if qualified {
		return nil, name, ConfidenceProbable
	}
	return nil, name, ConfidenceUnknown
}

// ---------------------------------------------------------------------------
// Lookup helpers
// ---------------------------------------------------------------------------

// candidateQNames returns the qualified names an unqualified reference in
// the given source entity's scope could resolve to, innermost first,
// followed by the activated namespaces.
func (w *walker) candidateQNames(name string, src *Entity) []string {
	sep := w.scope.Separator()
	var out []string
	if src != nil {
		segs := strings.Split(src.QualifiedName, sep)
		for i := len(segs) - 1; i >= 1; i-- {
			out = append(out, strings.Join(segs[:i], sep)+sep+name)
		}
	}
	out = append(out, name)
	for _, ns := range w.usingNamespaces {
		out = append(out, ns+sep+name)
	}
	return out
}

// lookupCallable returns the best callable entity for the candidate
// qualified names: definitions beat declarations, earlier candidates beat
// later ones.
func (w *walker) lookupCallable(candidates []string) *Entity {
	for _, cand := range candidates {
		var decl *Entity
		for _, e := range w.byQualified[cand] {
			if !e.Kind.IsCallable() {
				continue
			}
			if !e.DeclarationOnly {
				return e
			}
			if decl == nil {
				decl = e
			}
		}
		if decl != nil {
			return decl
		}
	}
	return nil
}

// uniqueSimpleCallable returns the callable entity with the given simple
// name when exactly one exists in the file.
func (w *walker) uniqueSimpleCallable(name string) *Entity {
	var found *Entity
	for _, e := range w.bySimple[name] {
		if !e.Kind.IsCallable() || e.Kind == EntityKindExternalReference {
			continue
		}
		if found != nil && found.QualifiedName != e.QualifiedName {
			return nil
		}
		if found == nil || (found.DeclarationOnly && !e.DeclarationOnly) {
			found = e
		}
	}
	return found
}

// typeOfVar returns the declared type text for a name visible from the
// source entity: local scopes first, then members of the enclosing type,
// then file-scope variables.
func (w *walker) typeOfVar(name string, src *Entity, vars *varScope) string {
	if t, ok := vars.typeOf(name); ok {
		return t
	}
	sep := w.scope.Separator()
	if owner := ownerQName(src, sep); owner != "" {
		if t, ok := w.memberTypes[owner+sep+name]; ok {
			return t
		}
	}
	if t, ok := w.gvarTypes[name]; ok {
		return t
	}
	return ""
}

// resolveTypeQName resolves a cleaned type name to the qualified name of a
// type defined in this file, following one level of alias indirection.
func (w *walker) resolveTypeQName(name string, src *Entity) string {
	for _, cand := range w.candidateQNames(name, src) {
		if w.definedTypes[cand] {
			return cand
		}
		if aliased, ok := w.aliasTargets[cand]; ok {
			base := cleanTypeName(aliased)
			for _, inner := range w.candidateQNames(base, src) {
				if w.definedTypes[inner] {
					return inner
				}
			}
		}
	}
	return ""
}

func (w *walker) emitCall(src, target *Entity, targetName string, conf Confidence, loc Location) {
	rel := Relationship{
		Kind:       RelationshipCalls,
		TargetName: targetName,
		Confidence: conf,
		Location:   loc,
	}
	if src != nil {
		rel.SourceID = src.ID
	}
	if target != nil {
		rel.TargetID = target.ID
		rel.TargetName = target.QualifiedName
	}
	w.res.Relationships = append(w.res.Relationships, rel)
}

// ownerQName returns the qualified name of the entity's owner scope: for
// "shapes::Circle::area" it returns "shapes::Circle".
func ownerQName(src *Entity, sep string) string {
	if src == nil {
		return ""
	}
	if i := strings.LastIndex(src.QualifiedName, sep); i > 0 {
		return src.QualifiedName[:i]
	}
	return ""
}

// cleanTypeName reduces a declared type's text to its base type name:
// "const std::vector<int>&" becomes "std::vector".
func cleanTypeName(t string) string {
	t = strings.NewReplacer("*", " ", "&", " ").Replace(t)
	out := ""
	for _, f := range strings.Fields(t) {
		switch f {
		case "const", "volatile", "struct", "class", "enum", "typename", "unsigned", "signed":
			continue
		}
		out = f
	}
	return normalizeTemplateArgs(out)
}
