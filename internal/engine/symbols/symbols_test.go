package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeintel/internal/engine/parser"
	"codeintel/internal/engine/parser/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexed struct {
	idx   *FileIndex
	lines [][]byte
}

func indexSource(t *testing.T, name, content string) indexed {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cache := parser.NewCache(registry.MustDefault(), parser.CacheOptions{Capacity: 4})
	t.Cleanup(cache.Close)
	ps, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	defer ps.Release()

	idx, err := Index(ps)
	require.NoError(t, err)
	return indexed{idx: idx, lines: ps.Lines()}
}

func symbolNamed(t *testing.T, idx *FileIndex, name string) Symbol {
	t.Helper()
	defs := idx.Definitions(name)
	require.Len(t, defs, 1, "definitions of %s", name)
	return defs[0]
}

func TestIndex_ScopeTreeIsRootedAndAcyclic(t *testing.T) {
	src := "def outer():\n    def inner():\n        pass\n\nclass K:\n    pass\n"
	idx := indexSource(t, "m.py", src).idx

	require.NotEmpty(t, idx.Scopes)
	assert.Equal(t, registry.ScopeModule, idx.Scopes[0].Kind)
	assert.Equal(t, -1, idx.Scopes[0].Parent)
	for _, sc := range idx.Scopes[1:] {
		assert.GreaterOrEqual(t, sc.Parent, 0)
		assert.Less(t, sc.Parent, sc.ID, "parents are created before children")
	}

	inner := symbolNamed(t, idx, "inner")
	assert.Equal(t, registry.ScopeFunction, idx.ScopeKind(inner.Scope))
	assert.Equal(t, "outer.inner", inner.QualifiedName)
	assert.Equal(t, VisibilityLocal, inner.Visibility)
	assert.Equal(t, VisibilityGlobal, symbolNamed(t, idx, "K").Visibility)
}

func TestIndex_InnermostScopeWins(t *testing.T) {
	src := `x = 1


def f(x):
    return x


def g():
    x = 2

    def h():
        return x
    return h


print(x)
`
	idx := indexSource(t, "shadow.py", src).idx

	defs := idx.Definitions("x")
	require.Len(t, defs, 3)
	byLine := map[int]Symbol{}
	for _, d := range defs {
		byLine[d.Line] = d
	}
	assert.Equal(t, registry.KindVariable, byLine[1].Kind)
	assert.Equal(t, registry.KindParameter, byLine[4].Kind)
	assert.Equal(t, registry.KindVariable, byLine[9].Kind)

	resolvedAt := map[int]int{}
	for _, ref := range idx.Occurrences("x") {
		if !ref.IsDefinition {
			resolvedAt[ref.Line] = ref.Resolved
		}
	}
	assert.Equal(t, byLine[4].ID, resolvedAt[5], "parameter shadows the global")
	assert.Equal(t, byLine[9].ID, resolvedAt[12], "closure sees the enclosing function")
	assert.Equal(t, byLine[1].ID, resolvedAt[16], "module level sees the global")
}

func TestIndex_GlobalAndNonlocalBindOutside(t *testing.T) {
	src := `counter = 0


def inc():
    global counter
    counter = counter + 1


def outer():
    total = 0

    def add(n):
        nonlocal total
        total = total + n
    return add
`
	idx := indexSource(t, "global.py", src).idx

	counter := symbolNamed(t, idx, "counter")
	assert.Equal(t, 1, counter.Line)
	assert.Equal(t, VisibilityGlobal, counter.Visibility)
	for _, ref := range idx.Occurrences("counter") {
		assert.Equal(t, counter.ID, ref.Resolved, "line %d col %d", ref.Line, ref.Column)
	}

	total := symbolNamed(t, idx, "total")
	assert.Equal(t, "outer.total", total.QualifiedName)
	for _, ref := range idx.Occurrences("total") {
		assert.Equal(t, total.ID, ref.Resolved, "line %d col %d", ref.Line, ref.Column)
	}
}

func TestIndex_WithAndExceptTargets(t *testing.T) {
	src := `def load(path):
    with open(path) as fh:
        data = fh.read()
    try:
        return int(data)
    except ValueError as err:
        print(err)
`
	idx := indexSource(t, "loop.py", src).idx

	fh := symbolNamed(t, idx, "fh")
	assert.Equal(t, registry.KindVariable, fh.Kind)
	assert.Equal(t, "load.fh", fh.QualifiedName)
	err := symbolNamed(t, idx, "err")
	assert.Equal(t, 6, err.Line)

	for _, name := range []string{"fh", "err"} {
		occ := idx.Occurrences(name)
		require.Len(t, occ, 2, name)
		assert.Equal(t, occ[0].Resolved, occ[1].Resolved, name)
		assert.NotEqual(t, NoSymbol, occ[1].Resolved, name)
	}
	assert.Empty(t, idx.Definitions("open"))
}

func TestIndex_ComprehensionVariablesAreScoped(t *testing.T) {
	src := `x = 10
squares = [x * x for x in range(3)]
pairs = {k: v for k, v in items}
print(x)
`
	idx := indexSource(t, "comp.py", src).idx

	defs := idx.Definitions("x")
	require.Len(t, defs, 2)
	module, inner := defs[0], defs[1]
	assert.Equal(t, VisibilityGlobal, module.Visibility)
	assert.Equal(t, registry.ScopeBlock, idx.ScopeKind(inner.Scope))

	for _, ref := range idx.Occurrences("x") {
		want := inner.ID
		if ref.Line != 2 {
			want = module.ID
		}
		assert.Equal(t, want, ref.Resolved, "line %d col %d", ref.Line, ref.Column)
	}

	k := symbolNamed(t, idx, "k")
	assert.Equal(t, registry.ScopeBlock, idx.ScopeKind(k.Scope))
	for _, ref := range idx.Occurrences("v") {
		assert.NotEqual(t, NoSymbol, ref.Resolved)
	}
}

func TestIndex_StringsAndCommentsAreNotOccurrences(t *testing.T) {
	src := `foo = 1
s = "foo"
t = "foo_config"
# foo in a comment
print(f"{foo}")
`
	idx := indexSource(t, "strings.py", src).idx

	var lines []int
	for _, ref := range idx.Occurrences("foo") {
		lines = append(lines, ref.Line)
	}
	assert.Equal(t, []int{1, 5}, lines, "only the definition and the f-string interpolation")
	assert.Empty(t, idx.Occurrences("foo_config"))
}

func TestIndex_ClassMembersAndInstanceAttributes(t *testing.T) {
	src := `class A:
    """Doc for A.

    More detail.
    """

    limit = 3

    def __init__(self, v):
        self.value = v
        self.value = v + 1

    def get(self):
        return self.value
`
	idx := indexSource(t, "cls.py", src).idx

	a := symbolNamed(t, idx, "A")
	assert.Equal(t, registry.KindClass, a.Kind)
	assert.Equal(t, "Doc for A.\n\nMore detail.", a.Docstring)

	assert.Equal(t, registry.KindField, symbolNamed(t, idx, "limit").Kind)

	init := symbolNamed(t, idx, "__init__")
	assert.Equal(t, registry.KindMethod, init.Kind)
	assert.Equal(t, VisibilityMember, init.Visibility)
	assert.Equal(t, "A.__init__", init.QualifiedName)

	v := symbolNamed(t, idx, "v")
	assert.Equal(t, registry.KindParameter, v.Kind)
	assert.Equal(t, VisibilityParameter, v.Visibility)

	value := symbolNamed(t, idx, "value")
	assert.Equal(t, registry.KindInstance, value.Kind)
	assert.Equal(t, VisibilityInstance, value.Visibility)
	assert.Equal(t, 10, value.Line)

	for _, ref := range idx.Occurrences("value") {
		assert.Equal(t, value.ID, ref.Resolved, "line %d", ref.Line)
	}
}

func TestIndex_ImportBindingsAreNotDefinitions(t *testing.T) {
	src := "from a import foo\nimport os.path as osp\n\n\nfoo()\n"
	idx := indexSource(t, "b.py", src).idx

	assert.Empty(t, idx.Definitions("foo"))
	occ := idx.Occurrences("foo")
	require.Len(t, occ, 2)
	sym, ok := idx.Resolve(occ[1])
	require.True(t, ok)
	assert.True(t, sym.Import)
	assert.Equal(t, registry.KindModule, sym.Kind)
	assert.Equal(t, 1, sym.Line)
	assert.Equal(t, occ[0].Resolved, occ[1].Resolved)

	require.Len(t, idx.Occurrences("osp"), 1)
	assert.NotEqual(t, NoSymbol, idx.Occurrences("osp")[0].Resolved)
}

func TestIndex_JavaScript(t *testing.T) {
	src := `/** Adds two numbers. */
const add = (a, b) => a + b;

class Counter {
  constructor() {
    this.count = 0;
  }
  inc() {
    this.count = this.count + 1;
    return add(this.count, 1);
  }
}
`
	idx := indexSource(t, "app.js", src).idx

	add := symbolNamed(t, idx, "add")
	assert.Equal(t, registry.KindFunction, add.Kind)
	assert.Equal(t, "Adds two numbers.", add.Docstring)

	assert.Equal(t, registry.KindClass, symbolNamed(t, idx, "Counter").Kind)
	assert.Equal(t, registry.KindMethod, symbolNamed(t, idx, "inc").Kind)

	count := symbolNamed(t, idx, "count")
	assert.Equal(t, registry.KindInstance, count.Kind)
	for _, ref := range idx.Occurrences("count") {
		assert.Equal(t, count.ID, ref.Resolved, "line %d", ref.Line)
	}

	for _, ref := range idx.Occurrences("add") {
		assert.Equal(t, add.ID, ref.Resolved)
	}
}

func TestIndex_Go(t *testing.T) {
	src := `package main

// Server serves requests.
type Server struct {
	addr string
}

// Start starts the server.
func (s *Server) Start() error {
	addr := s.addr
	_ = addr
	return nil
}
`
	idx := indexSource(t, "main.go", src).idx

	server := symbolNamed(t, idx, "Server")
	assert.Equal(t, registry.KindStruct, server.Kind)
	assert.Equal(t, "Server serves requests.", server.Docstring)

	start := symbolNamed(t, idx, "Start")
	assert.Equal(t, registry.KindMethod, start.Kind)
	assert.Equal(t, "Start starts the server.", start.Docstring)

	assert.Equal(t, registry.KindParameter, symbolNamed(t, idx, "s").Kind)

	addrs := idx.Definitions("addr")
	require.Len(t, addrs, 2)
	assert.Equal(t, registry.KindField, addrs[0].Kind)
	assert.Equal(t, "Server.addr", addrs[0].QualifiedName)
	assert.Equal(t, registry.KindVariable, addrs[1].Kind)

	for _, ref := range idx.Occurrences("addr") {
		if ref.Line == 11 {
			assert.Equal(t, addrs[1].ID, ref.Resolved)
		}
	}
}

func TestIndex_UnsearchableLanguage(t *testing.T) {
	idx := indexSource(t, "site.css", "body { color: red; }\n").idx
	assert.Empty(t, idx.Scopes)
	assert.Empty(t, idx.References)
}

func TestSearch_Operations(t *testing.T) {
	src := "def foo():\n    return 1\n\n\nx = foo()\ny = \"foo\"\n"
	ix := indexSource(t, "a.py", src)

	defs := Search(ix.idx, ix.lines, "foo", OpDefinition, 2)
	require.Len(t, defs, 1)
	assert.Equal(t, 1, defs[0].Line)
	assert.Equal(t, "function", defs[0].Kind)
	assert.Equal(t, "module", defs[0].ScopeKind)
	assert.Equal(t, "def foo():", defs[0].Snippet)
	assert.Len(t, defs[0].Context, 3)

	refs := Search(ix.idx, ix.lines, "foo", OpReferences, -1)
	require.Len(t, refs, 1)
	assert.Equal(t, 5, refs[0].Line)
	assert.True(t, refs[0].Resolved)
	assert.Nil(t, refs[0].Context)

	all := Search(ix.idx, ix.lines, "foo", OpAll, 0)
	require.Len(t, all, 2)
	assert.True(t, all[0].IsDefinition)
	assert.Equal(t, 5, all[1].Line)
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("")
	require.NoError(t, err)
	assert.Equal(t, OpAll, op)

	op, err = ParseOperation("references")
	require.NoError(t, err)
	assert.Equal(t, OpReferences, op)

	_, err = ParseOperation("usages")
	assert.Error(t, err)
}

func TestSortAndDedup(t *testing.T) {
	ms := []Match{
		{File: "b.py", Line: 1, Column: 1},
		{File: "a.py", Line: 2, Column: 5},
		{File: "a.py", Line: 2, Column: 5, IsDefinition: true},
		{File: "a.py", Line: 1, Column: 9},
	}
	SortMatches(ms)
	assert.Equal(t, "a.py", ms[0].File)
	assert.Equal(t, 1, ms[0].Line)
	assert.True(t, ms[1].IsDefinition)

	ms = Dedup(ms)
	assert.Len(t, ms, 3)
}

func TestCleanDoc(t *testing.T) {
	assert.Equal(t, "Title.\n\nBody line.\n  indented", cleanDoc("Title.\n\n    Body line.\n      indented\n    "))
	assert.Equal(t, "x", stripStringQuotes(`"""x"""`))
	assert.Equal(t, "x", stripStringQuotes(`r'x'`))
	assert.Equal(t, []string{"a", "b"}, commentLines("/**\n * a\n * b\n */")[1:3])
}
