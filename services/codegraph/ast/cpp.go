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

import (
	"path"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
)

// pendingForward is a bodiless class/struct declaration waiting for the end
// of the entity pass. It becomes an entity only when no definition with the
// same qualified name exists in the file.
type pendingForward struct {
	node        NodeID
	kind        EntityKind
	qname       string
	display     string
	containerID string
}

// walker performs the two-pass extraction over one file's tree: the entity
// pass builds the symbol tables, the reference pass resolves relationships
// against the complete tables so resolution does not depend on definition
// order within the file.
type walker struct {
	t        *Tree
	prof     *config.LanguageProfile
	filePath string
	language string
	res      *FileResult

	scope *ScopeResolver

	// Entity tables built by the entity pass.
	byQualified map[string][]*Entity
	bySimple    map[string][]*Entity
	entityAt    map[NodeID]*Entity

	// definedTypes holds qualified names of classes/structs/enums with a
	// body in this file; definedNamespaces the namespaces opened here.
	definedTypes      map[string]bool
	definedNamespaces map[string]bool

	// fnPtrAliases holds qualified names of typedefs/aliases that denote
	// callable types (function pointers).
	fnPtrAliases map[string]bool

	// aliasTargets maps a type alias's qualified name to its aliased type
	// text.
	aliasTargets map[string]string

	// memberTypes maps "TypeQName::member" to the member's declared type
	// text, used to resolve member calls through fields.
	memberTypes map[string]string

	// gvarTypes maps file/namespace-scope variable names to declared types.
	gvarTypes map[string]string

	// includes maps the base name of an included path (without directories
	// or extension) to the full include path.
	includes map[string]string

	// usingNamespaces lists namespaces activated with using-directives, in
	// source order.
	usingNamespaces []string

	// externals dedupes external reference entities by qualified name.
	externals map[string]*Entity

	pending []pendingForward
}

func newWalker(t *Tree, prof *config.LanguageProfile, filePath, language string, res *FileResult) *walker {
	return &walker{
		t:                 t,
		prof:              prof,
		filePath:          filePath,
		language:          language,
		res:               res,
		scope:             NewScopeResolver(prof.ScopeSeparator),
		byQualified:       make(map[string][]*Entity),
		bySimple:          make(map[string][]*Entity),
		entityAt:          make(map[NodeID]*Entity),
		definedTypes:      make(map[string]bool),
		definedNamespaces: make(map[string]bool),
		fnPtrAliases:      make(map[string]bool),
		aliasTargets:      make(map[string]string),
		memberTypes:       make(map[string]string),
		gvarTypes:         make(map[string]string),
		includes:          make(map[string]string),
		externals:         make(map[string]*Entity),
	}
}

// run executes both passes and flushes pending forward declarations.
func (w *walker) run() {
	root := w.t.Root()
	if root == InvalidNode {
		return
	}
	w.collectEntities(root)
	w.flushPending()
	w.collectReferences(root, nil, newVarScope(nil))
}

// ---------------------------------------------------------------------------
// Entity pass
// ---------------------------------------------------------------------------

func (w *walker) collectEntities(id NodeID) {
	kind := w.t.Kind(id)
	switch {
	case kind == "translation_unit":
		w.walkChildren(id)
	case kind == "namespace_definition":
		w.handleNamespace(id)
	case kind == "class_specifier" || kind == "struct_specifier":
		w.handleClassLike(id)
	case kind == "enum_specifier":
		w.handleEnum(id, "")
	case kind == "function_definition":
		w.handleFunction(id, false)
	case kind == "declaration":
		w.handleDeclaration(id)
	case kind == "field_declaration":
		w.handleFieldDeclaration(id)
	case kind == "type_definition":
		w.handleTypedef(id)
	case kind == "alias_declaration":
		w.handleAlias(id)
	case kind == "preproc_def" || kind == "preproc_function_def":
		w.handleMacro(id)
	case w.prof.IsInclude(kind):
		w.handleInclude(id)
	case kind == "using_declaration":
		w.handleUsing(id)
	case w.prof.IsTransparent(kind):
		w.walkChildren(id)
	default:
		// Statements and expressions hold no definitions; skipping them
		// keeps the entity pass cheap on large function bodies.
	}
}

func (w *walker) walkChildren(id NodeID) {
	for c := range w.t.Children(id) {
		w.collectEntities(c)
	}
}

func (w *walker) handleNamespace(id NodeID) {
	nameNode := w.t.ChildByField(id, "name")
	body := w.t.ChildByField(id, "body")
	if nameNode == InvalidNode {
		// Anonymous namespaces contribute no name segment and no entity,
		// but still delimit the scope.
		w.scope.PushAnonymous(ScopeNamespace)
		if body != InvalidNode {
			w.walkChildren(body)
		}
		w.scope.Pop()
		return
	}
	// "namespace a::b" arrives as a single name node; the compound text
	// joins correctly because it already uses the scope separator.
	name := w.t.Text(nameNode)
	qname := w.scope.Qualify(name)
	ent := w.addEntity(id, EntityKindNamespace, qname, lastSegment(name, w.scope.Separator()), false, "")
	w.definedNamespaces[qname] = true
	w.scope.Push(ScopeNamespace, name, ent.ID)
	if body != InvalidNode {
		w.walkChildren(body)
	}
	w.scope.Pop()
}

func (w *walker) handleClassLike(id NodeID) {
	kind := EntityKindClass
	if w.t.Kind(id) == "struct_specifier" || w.prof.EntityKindName(w.t.Kind(id)) == "struct" {
		kind = EntityKindStruct
	}
	nameNode := w.t.ChildByField(id, "name")
	body := w.t.ChildByField(id, "body")
	if body == InvalidNode {
		if nameNode != InvalidNode && w.isForwardDeclaration(id) {
			name := w.t.Text(nameNode)
			w.pending = append(w.pending, pendingForward{
				node:        id,
				kind:        kind,
				qname:       w.scope.Qualify(name),
				display:     name,
				containerID: w.scope.CurrentEntityID(),
			})
		}
		return
	}
	name := ""
	if nameNode != InvalidNode {
		name = w.t.Text(nameNode)
	}
	if name == "" {
		// Anonymous aggregates get their identity from an enclosing
		// typedef; handleTypedef takes care of that shape.
		w.scope.PushAnonymous(ScopeType)
		w.walkChildren(body)
		w.scope.Pop()
		return
	}
	qname := w.scope.Qualify(name)
	ent := w.addEntity(id, kind, qname, name, false, "")
	w.definedTypes[qname] = true
	w.scope.Push(ScopeType, name, ent.ID)
	w.walkChildren(body)
	w.scope.Pop()
}

// isForwardDeclaration reports whether a bodiless class/struct specifier is
// a standalone forward declaration rather than a type reference inside a
// variable or parameter declaration.
func (w *walker) isForwardDeclaration(id NodeID) bool {
	parent := w.t.Parent(id)
	if parent == InvalidNode {
		return false
	}
	switch w.t.Kind(parent) {
	case "translation_unit", "declaration_list", "template_declaration":
		return true
	case "declaration", "field_declaration":
		return w.t.ChildByField(parent, "declarator") == InvalidNode
	default:
		return false
	}
}

func (w *walker) handleEnum(id NodeID, typedefName string) {
	body := w.t.ChildByField(id, "body")
	if body == InvalidNode {
		return
	}
	name := typedefName
	if nameNode := w.t.ChildByField(id, "name"); nameNode != InvalidNode {
		name = w.t.Text(nameNode)
	}
	if name == "" {
		return
	}
	qname := w.scope.Qualify(name)
	ent := w.addEntity(id, EntityKindEnum, qname, name, false, "")
	w.definedTypes[qname] = true
	w.scope.Push(ScopeType, name, ent.ID)
	for c := range w.t.Children(body) {
		if w.t.Kind(c) != "enumerator" {
			continue
		}
		valName := w.t.ChildByField(c, "name")
		if valName == InvalidNode {
			continue
		}
		text := w.t.Text(valName)
		w.addEntityAt(c, EntityKindEnumValue, w.scope.Qualify(text), text, false, "")
	}
	w.scope.Pop()
}

// handleFunction extracts a function/method/constructor/destructor from a
// function_definition or a prototype declaration.
func (w *walker) handleFunction(id NodeID, declOnly bool) {
	fd := w.findFunctionDeclarator(id)
	if fd == InvalidNode {
		return
	}
	nameNode := w.declaratorNameNode(fd)
	if nameNode == InvalidNode {
		return
	}
	raw := w.t.Text(nameNode)
	if raw == "" {
		return
	}
	sep := w.scope.Separator()
	raw = normalizeTemplateArgs(raw)
	qname := w.scope.Qualify(raw)
	simple := lastSegment(raw, sep)

	kind := w.classifyCallable(raw, simple, qname)

	sig := ""
	if params := w.t.ChildByField(fd, "parameters"); params != InvalidNode {
		sig = w.t.Text(params)
	}
	// Deleted functions have no body to extract; they behave like
	// declarations for linking purposes.
	if w.t.FirstChildOfKind(id, "delete_method_clause") != InvalidNode {
		declOnly = true
	}

	ent := w.addEntity(id, kind, qname, simple, declOnly, sig)

	body := w.t.ChildByField(id, "body")
	if body == InvalidNode {
		return
	}
	w.scope.Push(ScopeFunction, simple, ent.ID)
	w.walkChildren(body)
	w.scope.Pop()
}

// classifyCallable decides among function, method, constructor, and
// destructor based on the written name and the enclosing scope.
func (w *walker) classifyCallable(raw, simple, qname string) EntityKind {
	sep := w.scope.Separator()
	if strings.HasPrefix(simple, "~") {
		return EntityKindDestructor
	}
	if encl := w.scope.EnclosingType(); encl != "" {
		if simple == encl {
			return EntityKindConstructor
		}
		return EntityKindMethod
	}
	if strings.Contains(raw, sep) {
		segs := strings.Split(raw, sep)
		owner := strings.TrimSuffix(qname, sep+simple)
		if len(segs) >= 2 && segs[len(segs)-1] == segs[len(segs)-2] {
			return EntityKindConstructor
		}
		if w.definedNamespaces[owner] {
			return EntityKindFunction
		}
		return EntityKindMethod
	}
	return EntityKindFunction
}

// findFunctionDeclarator descends the declarator chain (through pointer and
// reference wrappers) to the function_declarator, if any.
func (w *walker) findFunctionDeclarator(id NodeID) NodeID {
	d := w.t.ChildByField(id, "declarator")
	for d != InvalidNode {
		if w.t.Kind(d) == "function_declarator" {
			return d
		}
		next := w.t.ChildByField(d, "declarator")
		if next == InvalidNode {
			return InvalidNode
		}
		d = next
	}
	return InvalidNode
}

// declaratorNameNode descends from a function_declarator to the node
// holding the written name.
func (w *walker) declaratorNameNode(fd NodeID) NodeID {
	d := w.t.ChildByField(fd, "declarator")
	for d != InvalidNode {
		switch w.t.Kind(d) {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "type_identifier":
			return d
		}
		next := w.t.ChildByField(d, "declarator")
		if next == InvalidNode {
			return InvalidNode
		}
		d = next
	}
	return InvalidNode
}

// handleDeclaration processes file- and namespace-scope declarations:
// function prototypes, inline aggregate definitions, and variables.
func (w *walker) handleDeclaration(id NodeID) {
	if w.findFunctionDeclarator(id) != InvalidNode {
		w.handleFunction(id, true)
		return
	}
	// "struct S { ... } s;" defines the aggregate and a variable at once.
	if spec := w.t.FirstChildOfKind(id, "class_specifier", "struct_specifier", "enum_specifier"); spec != InvalidNode {
		w.collectEntities(spec)
	}
	if w.inFunctionScope() {
		return
	}
	typeText := ""
	if tn := w.t.ChildByField(id, "type"); tn != InvalidNode {
		typeText = w.t.Text(tn)
	}
	for c := range w.t.Children(id) {
		if w.t.Field(c) != "declarator" {
			continue
		}
		initialized := w.t.Kind(c) == "init_declarator" && w.t.ChildByField(c, "value") != InvalidNode
		d := c
		if w.t.Kind(d) == "init_declarator" {
			d = w.t.ChildByField(d, "declarator")
		}
		for d != InvalidNode && w.t.Kind(d) != "identifier" && w.t.Kind(d) != "qualified_identifier" {
			d = w.t.ChildByField(d, "declarator")
		}
		if d == InvalidNode {
			continue
		}
		name := w.t.Text(d)
		if name == "" {
			continue
		}
		// Bare declarations like "extern int x;" still feed the type table
		// but only initialized globals become entities.
		if initialized {
			w.addEntityAt(d, EntityKindVariable, w.scope.Qualify(name), name, false, "")
		}
		if typeText != "" {
			w.gvarTypes[name] = typeText
		}
	}
}

// handleFieldDeclaration processes class-body members: method prototypes
// become declaration-only entities, data members feed the member type table.
func (w *walker) handleFieldDeclaration(id NodeID) {
	if w.findFunctionDeclarator(id) != InvalidNode {
		// Pure-virtual declarations carry "= 0" as a default_value.
		w.handleFunction(id, true)
		return
	}
	if spec := w.t.FirstChildOfKind(id, "class_specifier", "struct_specifier", "enum_specifier"); spec != InvalidNode {
		w.collectEntities(spec)
	}
	owner := w.scope.EnclosingTypeQualified()
	if owner == "" {
		return
	}
	typeText := ""
	if tn := w.t.ChildByField(id, "type"); tn != InvalidNode {
		typeText = w.t.Text(tn)
	}
	if typeText == "" {
		return
	}
	for _, d := range w.declaratorNames(id) {
		name := w.t.Text(d)
		if name == "" {
			continue
		}
		w.memberTypes[owner+w.scope.Separator()+name] = typeText
	}
}

// declaratorNames returns the identifier nodes declared by a declaration,
// one per comma-separated declarator.
func (w *walker) declaratorNames(id NodeID) []NodeID {
	var out []NodeID
	for c := range w.t.Children(id) {
		if w.t.Field(c) != "declarator" {
			continue
		}
		d := c
		if w.t.Kind(d) == "init_declarator" {
			d = w.t.ChildByField(d, "declarator")
		}
		for d != InvalidNode {
			k := w.t.Kind(d)
			if k == "identifier" || k == "field_identifier" || k == "qualified_identifier" {
				out = append(out, d)
				break
			}
			d = w.t.ChildByField(d, "declarator")
		}
	}
	return out
}

func (w *walker) handleTypedef(id NodeID) {
	nameNode := InvalidNode
	isFnPtr := false
	for c := range w.t.Children(id) {
		if w.t.Field(c) != "declarator" {
			continue
		}
		if w.t.FindDescendant(c, "function_declarator") != InvalidNode {
			isFnPtr = true
		}
		if n := w.t.FindDescendant(c, "type_identifier"); n != InvalidNode {
			nameNode = n
		}
	}
	if nameNode == InvalidNode {
		return
	}
	name := w.t.Text(nameNode)
	typeNode := w.t.ChildByField(id, "type")

	// "typedef struct { ... } Point;" names an otherwise anonymous
	// aggregate; the typedef name is the aggregate's name.
	if typeNode != InvalidNode {
		tk := w.t.Kind(typeNode)
		if (tk == "struct_specifier" || tk == "enum_specifier" || tk == "class_specifier") &&
			w.t.ChildByField(typeNode, "name") == InvalidNode &&
			w.t.ChildByField(typeNode, "body") != InvalidNode {
			if tk == "enum_specifier" {
				w.handleEnum(typeNode, name)
				return
			}
			kind := EntityKindStruct
			if tk == "class_specifier" {
				kind = EntityKindClass
			}
			qname := w.scope.Qualify(name)
			ent := w.addEntity(id, kind, qname, name, false, "")
			w.definedTypes[qname] = true
			w.scope.Push(ScopeType, name, ent.ID)
			w.walkChildren(w.t.ChildByField(typeNode, "body"))
			w.scope.Pop()
			return
		}
	}

	qname := w.scope.Qualify(name)
	sig := ""
	if typeNode != InvalidNode {
		sig = w.t.Text(typeNode)
	}
	w.addEntity(id, EntityKindTypeAlias, qname, name, false, sig)
	w.aliasTargets[qname] = sig
	if isFnPtr {
		w.fnPtrAliases[qname] = true
	}
}

func (w *walker) handleAlias(id NodeID) {
	nameNode := w.t.ChildByField(id, "name")
	if nameNode == InvalidNode {
		return
	}
	name := w.t.Text(nameNode)
	qname := w.scope.Qualify(name)
	sig := ""
	if tn := w.t.ChildByField(id, "type"); tn != InvalidNode {
		sig = w.t.Text(tn)
		if w.t.FindDescendant(tn, "function_declarator") != InvalidNode {
			w.fnPtrAliases[qname] = true
		}
	}
	w.addEntity(id, EntityKindTypeAlias, qname, name, false, sig)
	w.aliasTargets[qname] = sig
}

func (w *walker) handleMacro(id NodeID) {
	nameNode := w.t.ChildByField(id, "name")
	if nameNode == InvalidNode {
		return
	}
	name := w.t.Text(nameNode)
	sig := ""
	if params := w.t.ChildByField(id, "parameters"); params != InvalidNode {
		sig = w.t.Text(params)
	}
	// Macros ignore lexical scope.
	w.addEntity(id, EntityKindMacro, name, name, false, sig)
}

func (w *walker) handleInclude(id NodeID) {
	pathNode := w.t.ChildByField(id, "path")
	if pathNode == InvalidNode {
		return
	}
	text := w.t.Text(pathNode)
	module := strings.Trim(text, "\"<>")
	if module == "" {
		return
	}
	base := strings.TrimSuffix(path.Base(module), path.Ext(module))
	w.includes[base] = module

	ext := w.externalEntity(module, w.t.Span(id).StartLine)
	w.res.Relationships = append(w.res.Relationships, Relationship{
		Kind:       RelationshipImports,
		TargetID:   ext.ID,
		TargetName: module,
		Confidence: ConfidenceExact,
		Location:   w.location(id),
	})
}

func (w *walker) handleUsing(id NodeID) {
	isNamespace := false
	target := InvalidNode
	for c := range w.t.Children(id) {
		if !w.t.IsNamed(c) && w.t.Kind(c) == "namespace" {
			isNamespace = true
			continue
		}
		k := w.t.Kind(c)
		if k == "identifier" || k == "qualified_identifier" || k == "namespace_identifier" {
			target = c
		}
	}
	if target == InvalidNode {
		return
	}
	name := w.t.Text(target)
	if !isNamespace {
		// "using std::cout;" pulls one symbol in; treat its head segment
		// like an activated namespace for lookup purposes.
		head, _, found := strings.Cut(name, w.scope.Separator())
		if found {
			name = head
			isNamespace = true
		} else {
			return
		}
	}
	w.usingNamespaces = append(w.usingNamespaces, name)

	rel := Relationship{
		Kind:       RelationshipImports,
		TargetName: name,
		Confidence: ConfidenceExact,
		Location:   w.location(id),
	}
	if !w.definedNamespaces[w.scope.Qualify(name)] && !w.definedNamespaces[name] {
		rel.TargetID = w.externalEntity(name, w.t.Span(id).StartLine).ID
	}
	w.res.Relationships = append(w.res.Relationships, rel)
}

func (w *walker) flushPending() {
	for _, p := range w.pending {
		if w.definedTypes[p.qname] {
			continue
		}
		span := w.t.Span(p.node)
		ent := &Entity{
			ID:              GenerateID(w.filePath, p.kind, p.qname, span.StartLine),
			Kind:            p.kind,
			QualifiedName:   p.qname,
			DisplayName:     p.display,
			Language:        w.language,
			FilePath:        w.filePath,
			StartLine:       span.StartLine,
			EndLine:         span.EndLine,
			DeclarationOnly: true,
		}
		w.indexEntity(ent)
		if p.containerID != "" {
			w.res.Relationships = append(w.res.Relationships, Relationship{
				Kind:       RelationshipContains,
				SourceID:   p.containerID,
				TargetID:   ent.ID,
				TargetName: ent.QualifiedName,
				Confidence: ConfidenceExact,
				Location:   ent.Location(),
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Entity construction
// ---------------------------------------------------------------------------

// addEntity creates an entity for a definition node, indexes it, registers
// it as the node's entity, and emits the containment edge.
func (w *walker) addEntity(node NodeID, kind EntityKind, qname, display string, declOnly bool, sig string) *Entity {
	ent := w.addEntityAt(node, kind, qname, display, declOnly, sig)
	w.entityAt[node] = ent
	return ent
}

// addEntityAt creates and indexes an entity without registering the node
// mapping (used for enum values and variables whose node is a declarator).
func (w *walker) addEntityAt(node NodeID, kind EntityKind, qname, display string, declOnly bool, sig string) *Entity {
	span := w.t.Span(node)
	ent := &Entity{
		ID:              GenerateID(w.filePath, kind, qname, span.StartLine),
		Kind:            kind,
		QualifiedName:   qname,
		DisplayName:     display,
		Language:        w.language,
		FilePath:        w.filePath,
		StartLine:       span.StartLine,
		EndLine:         span.EndLine,
		DeclarationOnly: declOnly,
		Primary:         !declOnly,
		Signature:       sig,
	}
	w.indexEntity(ent)
	if container := w.scope.CurrentEntityID(); container != "" {
		w.res.Relationships = append(w.res.Relationships, Relationship{
			Kind:       RelationshipContains,
			SourceID:   container,
			TargetID:   ent.ID,
			TargetName: ent.QualifiedName,
			Confidence: ConfidenceExact,
			Location:   ent.Location(),
		})
	}
	return ent
}

func (w *walker) indexEntity(ent *Entity) {
	w.res.Entities = append(w.res.Entities, ent)
	w.byQualified[ent.QualifiedName] = append(w.byQualified[ent.QualifiedName], ent)
	w.bySimple[ent.DisplayName] = append(w.bySimple[ent.DisplayName], ent)
}

// externalEntity returns the deduplicated external reference entity for a
// module path or symbol name. External IDs are name-derived (not position
// derived) so the same external collapses to one node across files.
func (w *walker) externalEntity(name string, line int) *Entity {
	if ent, ok := w.externals[name]; ok {
		return ent
	}
	ent := &Entity{
		ID:            "external:" + name,
		Kind:          EntityKindExternalReference,
		QualifiedName: name,
		DisplayName:   lastSegment(path.Base(name), w.scope.Separator()),
		Language:      w.language,
		FilePath:      w.filePath,
		StartLine:     line,
		EndLine:       line,
	}
	w.externals[name] = ent
	w.res.Entities = append(w.res.Entities, ent)
	return ent
}

func (w *walker) inFunctionScope() bool {
	for i := w.scope.Depth() - 1; i >= 0; i-- {
		if w.scope.frames[i].Kind == ScopeFunction {
			return true
		}
	}
	return false
}

func (w *walker) location(id NodeID) Location {
	span := w.t.Span(id)
	return Location{
		FilePath:  w.filePath,
		StartLine: span.StartLine,
		EndLine:   span.EndLine,
		StartCol:  span.StartCol,
		EndCol:    span.EndCol,
	}
}

// lastSegment returns the final separator-delimited segment of a name.
func lastSegment(name, sep string) string {
	if i := strings.LastIndex(name, sep); i >= 0 {
		return name[i+len(sep):]
	}
	return name
}

// normalizeTemplateArgs strips a trailing template argument list from a
// name: "vector<int>" becomes "vector", "std::map<K, V>" becomes
// "std::map".
func normalizeTemplateArgs(name string) string {
	i := strings.IndexByte(name, '<')
	if i < 0 {
		return name
	}
	return strings.TrimSpace(name[:i])
}
