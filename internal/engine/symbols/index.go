package symbols

import (
	"strings"

	"codeintel/internal/engine/astutil"
	"codeintel/internal/engine/imports"
	"codeintel/internal/engine/parser"
	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Fields of binding constructs that hold the bound pattern.
var patternFields = map[string][]string{
	"variable_declarator":            {"name"},
	"pair_pattern":                   {"value"},
	"assignment_pattern":             {"left"},
	"object_assignment_pattern":      {"left"},
	"default_parameter":              {"name"},
	"typed_default_parameter":        {"name"},
	"required_parameter":             {"pattern"},
	"optional_parameter":             {"pattern"},
	"formal_parameter":               {"name"},
	"parameter":                      {"pattern"},
	"parameter_declaration":          {"name"},
	"variadic_parameter_declaration": {"name"},
	"let_declaration":                {"pattern"},
}

// Containers whose named children are all binding targets.
var patternKinds = map[string]bool{
	"expression_list":          true,
	"pattern_list":             true,
	"tuple_pattern":            true,
	"list_pattern":             true,
	"tuple":                    true,
	"list":                     true,
	"parenthesized_expression": true,
	"list_splat_pattern":       true,
	"dictionary_splat_pattern": true,
	"typed_parameter":          true,
	"array_pattern":            true,
	"object_pattern":           true,
	"rest_pattern":             true,
	"ref_pattern":              true,
	"mut_pattern":              true,
	"or_pattern":               true,
	"slice_pattern":            true,
	"inferred_parameters":      true,
	"as_pattern_target":        true,
}

type binding struct {
	symbol     int
	definition bool
}

type refInfo struct {
	member bool
	self   bool
}

type indexer struct {
	desc registry.Descriptor
	src  []byte
	idx  *FileIndex

	imports map[uint]bool
	bound   map[uint]binding
	info    []refInfo
	// declared holds global/nonlocal names per scope.
	declared map[int]map[string]bool
}

// Index builds the scope tree, symbols and resolved references of ps. The
// walk is iterative, so nesting depth is bounded only by memory.
func Index(ps *parser.ParsedSource) (*FileIndex, error) {
	idx := &FileIndex{
		Path:         ps.Path,
		Language:     ps.Language,
		classVisible: ps.Descriptor.ClassMembersInScope,
	}
	if !ps.Descriptor.Searchable() {
		return idx, nil
	}

	imps, err := imports.Extract(ps)
	if err != nil {
		return nil, err
	}
	ix := &indexer{
		desc:    ps.Descriptor,
		src:     ps.Content,
		idx:     idx,
		imports:  make(map[uint]bool),
		bound:    make(map[uint]binding),
		declared: make(map[int]map[string]bool),
	}
	for _, imp := range imps {
		for _, b := range imp.Bindings {
			ix.imports[b.StartByte] = true
		}
	}

	err = ps.WithTree(func(root *sitter.Node) error {
		ix.collect(root)
		return nil
	})
	if err != nil {
		return nil, err
	}
	ix.resolve()
	return idx, nil
}

type frame struct {
	scope    int
	inString bool
	// owner names the next scope opened below a definition that is not a
	// scope itself, e.g. a Go struct type.
	owner string
}

func (ix *indexer) collect(root *sitter.Node) {
	ix.openScope(root, registry.ScopeModule, -1, "")
	interpolates := len(ix.desc.InterpolationKinds) > 0

	astutil.WalkWith(root, frame{scope: 0}, func(n *sitter.Node, f frame) (frame, astutil.WalkAction) {
		kind := n.Kind()
		if ix.desc.IsComment(kind) {
			return f, astutil.SkipChildren
		}
		if f.inString {
			if ix.desc.IsInterpolation(kind) {
				f.inString = false
			}
			return f, astutil.Continue
		}
		if ix.desc.IsString(kind) {
			if !interpolates {
				return f, astutil.SkipChildren
			}
			f.inString = true
			return f, astutil.Continue
		}

		scope := f.scope
		name := ""
		if symKind, ok := ix.desc.Definition(kind); ok {
			name = ix.define(n, symKind, scope)
		}
		if global := ix.desc.IsGlobal(kind); global || ix.desc.IsNonlocal(kind) {
			ix.declare(n, scope, global)
		}
		if ix.desc.IsParameter(kind) {
			for _, c := range namedChildren(n) {
				ix.bindTargets(c, registry.KindParameter, scope, nil)
			}
		}
		if ix.desc.IsIdentifier(kind) {
			ix.occurrence(n, scope)
		}
		if sk, ok := ix.desc.Scope(kind); ok && sk != registry.ScopeModule {
			if name == "" {
				name = f.owner
			}
			return frame{scope: ix.openScope(n, sk, scope, name)}, astutil.Continue
		}
		if name == "" {
			name = f.owner
		}
		return frame{scope: scope, owner: name}, astutil.Continue
	})
}

func (ix *indexer) openScope(n *sitter.Node, kind registry.ScopeKind, parent int, name string) int {
	id := len(ix.idx.Scopes)
	ix.idx.Scopes = append(ix.idx.Scopes, Scope{
		ID:        id,
		Kind:      kind,
		Parent:    parent,
		Name:      name,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		names:     make(map[string]int),
	})
	return id
}

// define binds the names of a definition node and returns the first one.
func (ix *indexer) define(n *sitter.Node, kind registry.SymbolKind, scope int) string {
	if t := n.ChildByFieldName("type"); t != nil {
		if refined, ok := ix.desc.TypeRefinements[t.Kind()]; ok {
			kind = refined
		}
	}
	if kind == registry.KindVariable || kind == registry.KindConstant {
		for _, field := range []string{"value", "right"} {
			v := n.ChildByFieldName(field)
			if v == nil {
				continue
			}
			if sk, ok := ix.desc.Scope(v.Kind()); ok && sk == registry.ScopeFunction {
				kind = registry.KindFunction
			}
			break
		}
	}

	for _, field := range ix.desc.NameFields {
		targets := astutil.ChildrenByField(n, field)
		if len(targets) == 0 {
			continue
		}
		first := ""
		for _, t := range targets {
			if name := ix.bindTargets(t, kind, scope, n); first == "" {
				first = name
			}
		}
		return first
	}
	// "as" targets are not always exposed through a field.
	for _, c := range namedChildren(n) {
		if c.Kind() == "as_pattern_target" {
			return ix.bindTargets(c, kind, scope, n)
		}
	}
	return ""
}

// bindTargets binds every name in a binding pattern and returns the first.
// Instance definitions only accept self.x targets.
func (ix *indexer) bindTargets(target *sitter.Node, kind registry.SymbolKind, scope int, def *sitter.Node) string {
	first := ""
	stack := []*sitter.Node{target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		k := n.Kind()

		if ix.desc.IsIdentifier(k) {
			if kind == registry.KindInstance {
				continue
			}
			ix.bind(n, kind, scope, def)
			if first == "" {
				first = astutil.Text(n, ix.src)
			}
			continue
		}
		if m, ok := ix.desc.Member(k); ok {
			obj, member := n.ChildByFieldName(m.Object), n.ChildByFieldName(m.Member)
			if obj == nil || member == nil || !ix.desc.IsSelf(astutil.Text(obj, ix.src)) {
				continue
			}
			if cls := ix.enclosingClass(scope); cls >= 0 {
				ix.bind(member, registry.KindInstance, cls, def)
			}
			continue
		}

		var children []*sitter.Node
		if fields, ok := patternFields[k]; ok {
			for _, field := range fields {
				children = append(children, astutil.ChildrenByField(n, field)...)
			}
		} else if patternKinds[k] {
			for i := 0; i < int(n.ChildCount()); i++ {
				c := n.Child(uint(i))
				if c == nil || !c.IsNamed() || n.FieldNameForChild(uint32(i)) == "type" {
					continue
				}
				children = append(children, c)
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return first
}

func (ix *indexer) bind(nameNode *sitter.Node, kind registry.SymbolKind, scope int, def *sitter.Node) {
	if _, seen := ix.bound[nameNode.StartByte()]; seen {
		return
	}
	name := astutil.Text(nameNode, ix.src)
	if name == "" {
		return
	}
	if kind != registry.KindParameter {
		scope = ix.bindingScope(scope, name)
	}
	sc := &ix.idx.Scopes[scope]

	if sc.Kind == registry.ScopeClass {
		switch kind {
		case registry.KindFunction:
			kind = registry.KindMethod
		case registry.KindVariable:
			kind = registry.KindField
		}
	}
	// Reassignment in the same scope refers to the first binding.
	if existing, ok := sc.names[name]; ok && rebindable(kind) {
		ix.bound[nameNode.StartByte()] = binding{symbol: existing}
		return
	}

	visibility := VisibilityLocal
	switch {
	case kind == registry.KindParameter:
		visibility = VisibilityParameter
	case kind == registry.KindInstance:
		visibility = VisibilityInstance
	case sc.Kind == registry.ScopeClass:
		visibility = VisibilityMember
	case scope == 0:
		visibility = VisibilityGlobal
	}

	start, end := astutil.Start(nameNode), astutil.End(nameNode)
	sym := Symbol{
		ID:            len(ix.idx.Symbols),
		Name:          name,
		QualifiedName: ix.qualify(scope, name),
		Kind:          kind,
		Scope:         scope,
		Visibility:    visibility,
		Line:          start.Line,
		Column:        start.Column,
		EndColumn:     end.Column,
		StartByte:     nameNode.StartByte(),
		EndByte:       nameNode.EndByte(),
	}
	if def != nil && kind != registry.KindParameter && kind != registry.KindInstance {
		sym.Docstring = docstring(ix.desc, def, ix.src)
	}
	if def == nil && kind == registry.KindModule {
		sym.Import = true
	}
	ix.idx.Symbols = append(ix.idx.Symbols, sym)
	sc.names[name] = sym.ID
	sc.Symbols = append(sc.Symbols, sym.ID)
	ix.bound[nameNode.StartByte()] = binding{symbol: sym.ID, definition: !sym.Import}
}

// declare records the names listed by a global or nonlocal statement.
// global names bind in the module scope; nonlocal ones are marked with false
// and bind in an enclosing function scope.
func (ix *indexer) declare(n *sitter.Node, scope int, global bool) {
	names := ix.declared[scope]
	if names == nil {
		names = make(map[string]bool)
		ix.declared[scope] = names
	}
	for _, c := range namedChildren(n) {
		if ix.desc.IsIdentifier(c.Kind()) {
			names[astutil.Text(c, ix.src)] = global
		}
	}
}

// bindingScope returns the scope an assignment to name in scope binds in.
func (ix *indexer) bindingScope(scope int, name string) int {
	global, ok := ix.declared[scope][name]
	if !ok {
		return scope
	}
	if global {
		return 0
	}
	// The nearest enclosing function that binds name, else the nearest one.
	nearest := -1
	for id := ix.idx.Scopes[scope].Parent; id > 0; id = ix.idx.Scopes[id].Parent {
		sc := ix.idx.Scopes[id]
		if sc.Kind != registry.ScopeFunction {
			continue
		}
		if _, bound := sc.names[name]; bound {
			return id
		}
		if nearest < 0 {
			nearest = id
		}
	}
	if nearest < 0 {
		return scope
	}
	return nearest
}

func rebindable(kind registry.SymbolKind) bool {
	switch kind {
	case registry.KindVariable, registry.KindField, registry.KindInstance:
		return true
	}
	return false
}

func (ix *indexer) occurrence(n *sitter.Node, scope int) {
	if ix.imports[n.StartByte()] {
		ix.bind(n, registry.KindModule, scope, nil)
	}

	var info refInfo
	if p := n.Parent(); p != nil {
		if m, ok := ix.desc.Member(p.Kind()); ok {
			if member := p.ChildByFieldName(m.Member); member != nil && member.StartByte() == n.StartByte() {
				info.member = true
				if obj := p.ChildByFieldName(m.Object); obj != nil {
					info.self = ix.desc.IsSelf(astutil.Text(obj, ix.src))
				}
			}
		}
	}

	start, end := astutil.Start(n), astutil.End(n)
	ix.idx.References = append(ix.idx.References, Reference{
		Name:      astutil.Text(n, ix.src),
		Line:      start.Line,
		Column:    start.Column,
		EndColumn: end.Column,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Scope:     scope,
		Resolved:  NoSymbol,
	})
	ix.info = append(ix.info, info)
}

// resolve runs after every scope is known so forward references bind.
func (ix *indexer) resolve() {
	for i := range ix.idx.References {
		ref := &ix.idx.References[i]
		if b, ok := ix.bound[ref.StartByte]; ok {
			ref.Resolved = b.symbol
			ref.IsDefinition = b.definition
			continue
		}
		info := ix.info[i]
		switch {
		case info.member && info.self:
			if cls := ix.enclosingClass(ref.Scope); cls >= 0 {
				if sym, ok := ix.idx.Scopes[cls].names[ref.Name]; ok {
					ref.Resolved = sym
				}
			}
		case info.member:
			// obj.name without a type for obj stays unresolved.
		default:
			ref.Resolved = ix.idx.Lookup(ref.Scope, ref.Name)
		}
	}
}

func (ix *indexer) enclosingClass(scope int) int {
	for id := scope; id >= 0; id = ix.idx.Scopes[id].Parent {
		if ix.idx.Scopes[id].Kind == registry.ScopeClass {
			return id
		}
	}
	return -1
}

func (ix *indexer) qualify(scope int, name string) string {
	parts := []string{name}
	for id := scope; id >= 0; id = ix.idx.Scopes[id].Parent {
		if n := ix.idx.Scopes[id].Name; n != "" {
			parts = append(parts, n)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}
