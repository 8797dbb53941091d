package imports

import (
	"strings"

	"codeintel/internal/engine/astutil"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func extractPython(n *sitter.Node, src []byte) []Import {
	switch n.Kind() {
	case "import_statement":
		var out []Import
		for _, name := range astutil.ChildrenByField(n, "name") {
			imp := Import{Line: line(n), Kind: "import"}
			switch name.Kind() {
			case "aliased_import":
				imp.Module = astutil.Text(name.ChildByFieldName("name"), src)
				if alias := name.ChildByFieldName("alias"); alias != nil {
					imp.Bindings = append(imp.Bindings, binding(alias, src))
				}
			default:
				imp.Module = astutil.Text(name, src)
				// "import a.b" binds "a".
				if first := firstOfKind(name, "identifier"); first != nil {
					imp.Bindings = append(imp.Bindings, binding(first, src))
				}
			}
			out = append(out, imp)
		}
		return out

	case "import_from_statement", "future_import_statement":
		imp := Import{Line: line(n), Kind: "from"}
		if n.Kind() == "future_import_statement" {
			imp.Module = "__future__"
		} else if module := n.ChildByFieldName("module_name"); module != nil {
			if module.Kind() == "relative_import" {
				imp.IsRelative = true
				if prefix := firstOfKind(module, "import_prefix"); prefix != nil {
					imp.Level = len(strings.TrimSpace(astutil.Text(prefix, src)))
				}
				if dotted := firstOfKind(module, "dotted_name"); dotted != nil {
					imp.Module = astutil.Text(dotted, src)
				}
			} else {
				imp.Module = astutil.Text(module, src)
			}
		}
		for _, name := range astutil.ChildrenByField(n, "name") {
			switch name.Kind() {
			case "aliased_import":
				imp.Names = append(imp.Names, astutil.Text(name.ChildByFieldName("name"), src))
				if alias := name.ChildByFieldName("alias"); alias != nil {
					imp.Bindings = append(imp.Bindings, binding(alias, src))
				}
			default:
				imp.Names = append(imp.Names, astutil.Text(name, src))
				if last := lastOfKind(name, "identifier"); last != nil {
					imp.Bindings = append(imp.Bindings, binding(last, src))
				}
			}
		}
		if firstOfKind(n, "wildcard_import") != nil {
			imp.Names = append(imp.Names, "*")
		}
		return []Import{imp}
	}
	return nil
}

func extractJavaScript(n *sitter.Node, src []byte) []Import {
	switch n.Kind() {
	case "import_statement":
		source := n.ChildByFieldName("source")
		if source == nil {
			return nil
		}
		imp := Import{Module: unquote(astutil.Text(source, src)), Line: line(n), Kind: "import"}
		imp.IsRelative = isRelativePath(imp.Module)
		if clause := firstOfKind(n, "import_clause"); clause != nil {
			for _, c := range astutil.Children(clause) {
				switch c.Kind() {
				case "identifier":
					imp.Names = append(imp.Names, "default")
					imp.Bindings = append(imp.Bindings, binding(c, src))
				case "namespace_import":
					imp.Names = append(imp.Names, "*")
					if id := firstOfKind(c, "identifier"); id != nil {
						imp.Bindings = append(imp.Bindings, binding(id, src))
					}
				case "named_imports":
					for _, spec := range astutil.Children(c) {
						if spec.Kind() != "import_specifier" {
							continue
						}
						name := spec.ChildByFieldName("name")
						imp.Names = append(imp.Names, astutil.Text(name, src))
						local := name
						if alias := spec.ChildByFieldName("alias"); alias != nil {
							local = alias
						}
						if local != nil {
							imp.Bindings = append(imp.Bindings, binding(local, src))
						}
					}
				}
			}
		}
		return []Import{imp}

	case "export_statement":
		source := n.ChildByFieldName("source")
		if source == nil {
			return nil
		}
		imp := Import{Module: unquote(astutil.Text(source, src)), Line: line(n), Kind: "export"}
		imp.IsRelative = isRelativePath(imp.Module)
		if clause := firstOfKind(n, "export_clause"); clause != nil {
			for _, spec := range astutil.Children(clause) {
				if spec.Kind() == "export_specifier" {
					imp.Names = append(imp.Names, astutil.Text(spec.ChildByFieldName("name"), src))
				}
			}
		} else {
			imp.Names = append(imp.Names, "*")
		}
		return []Import{imp}

	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		kind := "require"
		switch {
		case fn.Kind() == "import":
			kind = "dynamic"
		case fn.Kind() == "identifier" && astutil.Text(fn, src) == "require":
		default:
			return nil
		}
		args := n.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return nil
		}
		arg := args.NamedChild(0)
		if arg.Kind() != "string" {
			return nil
		}
		imp := Import{Module: unquote(astutil.Text(arg, src)), Line: line(n), Kind: kind}
		imp.IsRelative = isRelativePath(imp.Module)
		if parent := n.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
			if name := parent.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				imp.Bindings = append(imp.Bindings, binding(name, src))
			}
		}
		return []Import{imp}
	}
	return nil
}

func extractGo(n *sitter.Node, src []byte) []Import {
	var out []Import
	astutil.Walk(n, func(c *sitter.Node) astutil.WalkAction {
		if c.Kind() != "import_spec" {
			return astutil.Continue
		}
		imp := Import{Module: unquote(astutil.Text(c.ChildByFieldName("path"), src)), Line: line(c), Kind: "import"}
		if name := c.ChildByFieldName("name"); name != nil && name.Kind() == "package_identifier" {
			imp.Bindings = append(imp.Bindings, binding(name, src))
		}
		out = append(out, imp)
		return astutil.SkipChildren
	})
	return out
}

func extractRust(n *sitter.Node, src []byte) []Import {
	switch n.Kind() {
	case "use_declaration":
		arg := n.ChildByFieldName("argument")
		if arg == nil {
			return nil
		}
		imp := Import{Line: line(n), Kind: "use"}
		rustUse(arg, src, &imp)
		imp.IsRelative = strings.HasPrefix(imp.Module, "crate::") || strings.HasPrefix(imp.Module, "self::") ||
			strings.HasPrefix(imp.Module, "super::")
		return []Import{imp}

	case "extern_crate_declaration":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		imp := Import{Module: astutil.Text(name, src), Line: line(n), Kind: "extern"}
		if alias := n.ChildByFieldName("alias"); alias != nil {
			imp.Bindings = append(imp.Bindings, binding(alias, src))
		}
		return []Import{imp}

	case "mod_item":
		// Only "mod name;" pulls in another file.
		if n.ChildByFieldName("body") != nil {
			return nil
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return []Import{{Module: astutil.Text(name, src), Line: line(n), Kind: "mod", IsRelative: true}}
	}
	return nil
}

func rustUse(arg *sitter.Node, src []byte, imp *Import) {
	switch arg.Kind() {
	case "scoped_identifier":
		imp.Module = astutil.Text(arg, src)
		if name := arg.ChildByFieldName("name"); name != nil {
			imp.Names = append(imp.Names, astutil.Text(name, src))
			imp.Bindings = append(imp.Bindings, binding(name, src))
		}
	case "identifier":
		imp.Module = astutil.Text(arg, src)
		imp.Names = append(imp.Names, imp.Module)
		imp.Bindings = append(imp.Bindings, binding(arg, src))
	case "use_as_clause":
		path := arg.ChildByFieldName("path")
		imp.Module = astutil.Text(path, src)
		imp.Names = append(imp.Names, lastSegment(imp.Module))
		if alias := arg.ChildByFieldName("alias"); alias != nil {
			imp.Bindings = append(imp.Bindings, binding(alias, src))
		}
	case "use_wildcard":
		imp.Module = strings.TrimSuffix(astutil.Text(arg, src), "::*")
		imp.Names = append(imp.Names, "*")
	case "scoped_use_list":
		if path := arg.ChildByFieldName("path"); path != nil {
			imp.Module = astutil.Text(path, src)
		}
		if list := arg.ChildByFieldName("list"); list != nil {
			for _, item := range astutil.Children(list) {
				switch item.Kind() {
				case "identifier":
					imp.Names = append(imp.Names, astutil.Text(item, src))
					imp.Bindings = append(imp.Bindings, binding(item, src))
				case "scoped_identifier":
					if name := item.ChildByFieldName("name"); name != nil {
						imp.Names = append(imp.Names, astutil.Text(name, src))
						imp.Bindings = append(imp.Bindings, binding(name, src))
					}
				case "use_as_clause":
					imp.Names = append(imp.Names, lastSegment(astutil.Text(item.ChildByFieldName("path"), src)))
					if alias := item.ChildByFieldName("alias"); alias != nil {
						imp.Bindings = append(imp.Bindings, binding(alias, src))
					}
				}
			}
		}
	default:
		imp.Module = astutil.Text(arg, src)
	}
}

func extractJava(n *sitter.Node, src []byte) []Import {
	target := firstOfKind(n, "scoped_identifier", "identifier")
	if target == nil {
		return nil
	}
	imp := Import{Module: astutil.Text(target, src), Line: line(n), Kind: "import"}
	if firstOfKind(n, "asterisk") != nil {
		imp.Names = append(imp.Names, "*")
		return []Import{imp}
	}
	name := target
	if target.Kind() == "scoped_identifier" {
		name = target.ChildByFieldName("name")
	}
	if name != nil {
		imp.Names = append(imp.Names, astutil.Text(name, src))
		imp.Bindings = append(imp.Bindings, binding(name, src))
	}
	return []Import{imp}
}

func extractCSS(n *sitter.Node, src []byte) []Import {
	target := firstOfKind(n, "string_value", "plain_value")
	if target == nil {
		return nil
	}
	module := unquote(astutil.Text(target, src))
	return []Import{{Module: module, Line: line(n), Kind: "css", IsRelative: !hasScheme(module)}}
}

func extractHTML(n *sitter.Node, src []byte) []Import {
	start := firstOfKind(n, "start_tag", "self_closing_tag")
	if start == nil {
		return nil
	}
	tag := strings.ToLower(astutil.Text(firstOfKind(start, "tag_name"), src))
	want := ""
	switch tag {
	case "script":
		want = "src"
	case "link":
		want = "href"
	default:
		return nil
	}
	for _, attr := range astutil.Children(start) {
		if attr.Kind() != "attribute" {
			continue
		}
		if strings.ToLower(astutil.Text(firstOfKind(attr, "attribute_name"), src)) != want {
			continue
		}
		value := firstOfKind(attr, "attribute_value")
		if value == nil {
			return nil
		}
		module := astutil.Text(value, src)
		return []Import{{Module: module, Line: line(n), Kind: tag, IsRelative: !hasScheme(module)}}
	}
	return nil
}

func hasScheme(module string) bool {
	return strings.Contains(module, "://") || strings.HasPrefix(module, "//") || strings.HasPrefix(module, "data:")
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}
