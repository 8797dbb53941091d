package imports

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

func extractFrom(t *testing.T, name, content string) []Import {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cache := parser.NewCache(registry.MustDefault(), parser.CacheOptions{Capacity: 4})
	t.Cleanup(cache.Close)
	ps, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	defer ps.Release()

	out, err := Extract(ps)
	require.NoError(t, err)
	return out
}

func TestExtract_PythonFromImport(t *testing.T) {
	src := "from a import foo\n\n\ndef bar():\n    return foo()\n"
	got := extractFrom(t, "b.py", src)

	require.Len(t, got, 1)
	imp := got[0]
	assert.Equal(t, "a", imp.Module)
	assert.Equal(t, []string{"foo"}, imp.Names)
	assert.Equal(t, 1, imp.Line)
	assert.False(t, imp.IsRelative)
	require.Len(t, imp.Bindings, 1)
	assert.Equal(t, "foo", imp.Bindings[0].Name)
	assert.Equal(t, 15, imp.Bindings[0].Column)
}

func TestExtract_PythonVariants(t *testing.T) {
	src := `import os
import os.path as osp, json
from . import sibling
from ..pkg.mod import thing as other
from star import *
from __future__ import annotations
x = "import nothing"
`
	got := extractFrom(t, "m.py", src)
	require.Len(t, got, 7)

	assert.Equal(t, "os", got[0].Module)
	assert.Equal(t, "os", got[0].Bindings[0].Name)

	assert.Equal(t, "os.path", got[1].Module)
	assert.Equal(t, "osp", got[1].Bindings[0].Name)
	assert.Equal(t, "json", got[2].Module)

	assert.True(t, got[3].IsRelative)
	assert.Equal(t, 1, got[3].Level)
	assert.Equal(t, "", got[3].Module)
	assert.Equal(t, []string{"sibling"}, got[3].Names)

	assert.True(t, got[4].IsRelative)
	assert.Equal(t, 2, got[4].Level)
	assert.Equal(t, "pkg.mod", got[4].Module)
	assert.Equal(t, []string{"thing"}, got[4].Names)
	assert.Equal(t, "other", got[4].Bindings[0].Name)

	assert.Equal(t, []string{"*"}, got[5].Names)
	assert.Empty(t, got[5].Bindings)

	assert.Equal(t, "__future__", got[6].Module)
}

func TestExtract_JavaScript(t *testing.T) {
	src := `import React, { useState as useS, useEffect } from "react";
import * as utils from './utils';
export { helper } from "./helper";
const fs = require("fs");
// import nope from "nope";
const lazy = () => import("./lazy");
`
	got := extractFrom(t, "app.js", src)
	require.Len(t, got, 5)

	assert.Equal(t, "react", got[0].Module)
	assert.False(t, got[0].IsRelative)
	assert.Equal(t, []string{"default", "useState", "useEffect"}, got[0].Names)
	names := make([]string, 0, len(got[0].Bindings))
	for _, b := range got[0].Bindings {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"React", "useS", "useEffect"}, names)

	assert.Equal(t, "./utils", got[1].Module)
	assert.True(t, got[1].IsRelative)
	assert.Equal(t, "utils", got[1].Bindings[0].Name)

	assert.Equal(t, "export", got[2].Kind)
	assert.Equal(t, []string{"helper"}, got[2].Names)

	assert.Equal(t, "fs", got[3].Module)
	assert.Equal(t, "require", got[3].Kind)
	assert.Equal(t, "fs", got[3].Bindings[0].Name)

	assert.Equal(t, "./lazy", got[4].Module)
	assert.Equal(t, "dynamic", got[4].Kind)
}

func TestExtract_TypeScript(t *testing.T) {
	src := "import { Foo } from '@app/foo';\nimport type { Bar } from \"../bar\";\n"
	got := extractFrom(t, "x.ts", src)
	require.Len(t, got, 2)
	assert.Equal(t, "@app/foo", got[0].Module)
	assert.Equal(t, "../bar", got[1].Module)
	assert.True(t, got[1].IsRelative)
}

func TestExtract_Go(t *testing.T) {
	src := `package main

import (
	"fmt"
	str "strings"
)

import "os"
`
	got := extractFrom(t, "main.go", src)
	require.Len(t, got, 3)
	assert.Equal(t, "fmt", got[0].Module)
	assert.Empty(t, got[0].Bindings)
	assert.Equal(t, "strings", got[1].Module)
	assert.Equal(t, "str", got[1].Bindings[0].Name)
	assert.Equal(t, 5, got[1].Line)
	assert.Equal(t, "os", got[2].Module)
}

func TestExtract_Rust(t *testing.T) {
	src := `use std::collections::HashMap;
use crate::config::{Config, Loader as L};
use super::util::*;
mod parser;
mod inline { fn f() {} }
extern crate serde;
`
	got := extractFrom(t, "lib.rs", src)
	require.Len(t, got, 5)

	assert.Equal(t, "std::collections::HashMap", got[0].Module)
	assert.Equal(t, []string{"HashMap"}, got[0].Names)
	assert.False(t, got[0].IsRelative)

	assert.Equal(t, "crate::config", got[1].Module)
	assert.Equal(t, []string{"Config", "Loader"}, got[1].Names)
	assert.True(t, got[1].IsRelative)
	require.Len(t, got[1].Bindings, 2)
	assert.Equal(t, "L", got[1].Bindings[1].Name)

	assert.Equal(t, "super::util", got[2].Module)
	assert.Equal(t, []string{"*"}, got[2].Names)

	assert.Equal(t, "parser", got[3].Module)
	assert.Equal(t, "mod", got[3].Kind)

	assert.Equal(t, "serde", got[4].Module)
}

func TestExtract_Java(t *testing.T) {
	src := "package app;\n\nimport java.util.List;\nimport java.io.*;\n\nclass A {}\n"
	got := extractFrom(t, "A.java", src)
	require.Len(t, got, 2)
	assert.Equal(t, "java.util.List", got[0].Module)
	assert.Equal(t, "List", got[0].Bindings[0].Name)
	assert.Equal(t, "java.io", got[1].Module)
	assert.Equal(t, []string{"*"}, got[1].Names)
}

func TestExtract_CSSAndHTML(t *testing.T) {
	css := extractFrom(t, "site.css", "@import \"base.css\";\n@import url(\"https://cdn.example/x.css\");\nbody { color: red; }\n")
	require.Len(t, css, 2)
	assert.Equal(t, "base.css", css[0].Module)
	assert.True(t, css[0].IsRelative)
	assert.False(t, css[1].IsRelative)

	html := extractFrom(t, "index.html", `<html><head>
<script src="app.js"></script>
<link rel="stylesheet" href="site.css">
<script>var inline = 1;</script>
</head></html>
`)
	require.Len(t, html, 2)
	assert.Equal(t, "app.js", html[0].Module)
	assert.Equal(t, "script", html[0].Kind)
	assert.Equal(t, "site.css", html[1].Module)
	assert.Equal(t, "link", html[1].Kind)
}

func TestUnquoteAndRelative(t *testing.T) {
	assert.Equal(t, "x", unquote(`"x"`))
	assert.Equal(t, "x", unquote("'x'"))
	assert.Equal(t, `"x`, unquote(`"x`))
	assert.True(t, isRelativePath("./a"))
	assert.True(t, isRelativePath("../a"))
	assert.False(t, isRelativePath("a/b"))
}
