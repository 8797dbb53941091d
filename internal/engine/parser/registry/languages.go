package registry

import (
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Default returns a fresh copy of the built-in descriptor table.
func Default() map[Language]Descriptor {
	ts := typescriptDescriptor(TypeScript, []string{".ts", ".mts", ".cts"})
	ts.Grammar = tree_sitter_typescript.LanguageTypescript
	tsx := typescriptDescriptor(TSX, []string{".tsx"})
	tsx.Grammar = tree_sitter_typescript.LanguageTSX

	return map[Language]Descriptor{
		Python:     pythonDescriptor(),
		JavaScript: javascriptDescriptor(),
		TypeScript: ts,
		TSX:        tsx,
		Go:         goDescriptor(),
		Rust:       rustDescriptor(),
		Java:       javaDescriptor(),
		CSS:        cssDescriptor(),
		HTML:       htmlDescriptor(),
	}
}

func pythonDescriptor() Descriptor {
	return Descriptor{
		ID:                 Python,
		Extensions:         []string{".py", ".pyi"},
		Grammar:            tree_sitter_python.Language,
		CommentKinds:       []string{"comment"},
		CommentPrefixes:    []string{"#"},
		StringKinds:        []string{"string"},
		InterpolationKinds: []string{"interpolation"},
		IdentifierKinds:    []string{"identifier"},
		DefinitionKinds: map[string]SymbolKind{
			"function_definition": KindFunction,
			"class_definition":    KindClass,
			"assignment":          KindVariable,
			"for_statement":       KindVariable,
			"for_in_clause":       KindVariable,
			// with ... as x, except E as x
			"as_pattern": KindVariable,
		},
		NameFields: []string{"name", "left"},
		ScopeKinds: map[string]ScopeKind{
			"module":                   ScopeModule,
			"class_definition":         ScopeClass,
			"function_definition":      ScopeFunction,
			"lambda":                   ScopeFunction,
			"list_comprehension":       ScopeBlock,
			"set_comprehension":        ScopeBlock,
			"dictionary_comprehension": ScopeBlock,
			"generator_expression":     ScopeBlock,
		},
		ParameterKinds: []string{"parameters", "lambda_parameters"},
		ImportKinds:    []string{"import_statement", "import_from_statement", "future_import_statement"},
		GlobalKinds:    []string{"global_statement"},
		NonlocalKinds:  []string{"nonlocal_statement"},
		SelfNames:      []string{"self", "cls"},
		MemberAccess:   map[string]MemberAccess{"attribute": {Object: "object", Member: "attribute"}},
		DocStyle:       DocBodyString,
		Keywords: []string{
			"False", "None", "True", "and", "as", "assert", "async", "await", "break",
			"class", "continue", "def", "del", "elif", "else", "except", "finally", "for",
			"from", "global", "if", "import", "in", "is", "lambda", "nonlocal", "not",
			"or", "pass", "raise", "return", "try", "while", "with", "yield",
		},
	}
}

func javascriptDescriptor() Descriptor {
	return Descriptor{
		ID:                 JavaScript,
		Extensions:         []string{".js", ".jsx", ".mjs", ".cjs"},
		Grammar:            tree_sitter_javascript.Language,
		CommentKinds:       []string{"comment"},
		CommentPrefixes:    []string{"//", "/*"},
		StringKinds:        []string{"string", "template_string", "regex"},
		InterpolationKinds: []string{"template_substitution"},
		IdentifierKinds: []string{
			"identifier", "property_identifier", "shorthand_property_identifier",
			"shorthand_property_identifier_pattern",
		},
		DefinitionKinds: map[string]SymbolKind{
			"function_declaration":           KindFunction,
			"generator_function_declaration": KindFunction,
			"class_declaration":              KindClass,
			"method_definition":              KindMethod,
			"variable_declarator":            KindVariable,
			"field_definition":               KindField,
			// Only this.x targets of an assignment define anything.
			"assignment_expression":          KindInstance,
		},
		NameFields: []string{"name", "property", "left"},
		ScopeKinds: map[string]ScopeKind{
			"program":                        ScopeModule,
			"class_declaration":              ScopeClass,
			"class":                          ScopeClass,
			"function_declaration":           ScopeFunction,
			"generator_function_declaration": ScopeFunction,
			"function_expression":            ScopeFunction,
			"arrow_function":                 ScopeFunction,
			"method_definition":              ScopeFunction,
			"statement_block":                ScopeBlock,
			"for_statement":                  ScopeBlock,
			"for_in_statement":               ScopeBlock,
		},
		ParameterKinds: []string{"formal_parameters"},
		ImportKinds:    []string{"import_statement", "export_statement", "call_expression"},
		SelfNames:      []string{"this"},
		DocStyle:       DocPrecedingComment,
		DocPrefix:      "/**",
		Keywords:       jsKeywords,
		MemberAccess:   map[string]MemberAccess{"member_expression": {Object: "object", Member: "property"}},
	}
}

func typescriptDescriptor(id Language, exts []string) Descriptor {
	d := javascriptDescriptor()
	d.ID = id
	d.Extensions = exts
	d.IdentifierKinds = append(append([]string(nil), d.IdentifierKinds...), "type_identifier")
	d.DefinitionKinds = map[string]SymbolKind{
		"function_declaration":           KindFunction,
		"generator_function_declaration": KindFunction,
		"function_signature":             KindFunction,
		"class_declaration":              KindClass,
		"abstract_class_declaration":     KindClass,
		"interface_declaration":          KindInterface,
		"type_alias_declaration":         KindType,
		"enum_declaration":               KindEnum,
		"method_definition":              KindMethod,
		"method_signature":               KindMethod,
		"abstract_method_signature":      KindMethod,
		"variable_declarator":            KindVariable,
		"public_field_definition":        KindField,
		"property_signature":             KindField,
		"assignment_expression":          KindInstance,
	}
	d.ScopeKinds = map[string]ScopeKind{
		"program":                        ScopeModule,
		"class_declaration":              ScopeClass,
		"abstract_class_declaration":     ScopeClass,
		"class":                          ScopeClass,
		"function_declaration":           ScopeFunction,
		"generator_function_declaration": ScopeFunction,
		"function_expression":            ScopeFunction,
		"arrow_function":                 ScopeFunction,
		"method_definition":              ScopeFunction,
		"statement_block":                ScopeBlock,
		"for_statement":                  ScopeBlock,
		"for_in_statement":               ScopeBlock,
	}
	d.NameFields = []string{"name", "pattern", "property", "left"}
	d.Keywords = append(append([]string(nil), jsKeywords...),
		"interface", "type", "enum", "implements", "namespace", "declare", "readonly", "abstract")
	return d
}

func goDescriptor() Descriptor {
	return Descriptor{
		ID:              Go,
		Extensions:      []string{".go"},
		Grammar:         tree_sitter_go.Language,
		CommentKinds:    []string{"comment"},
		CommentPrefixes: []string{"//", "/*"},
		StringKinds:     []string{"interpreted_string_literal", "raw_string_literal", "rune_literal"},
		IdentifierKinds: []string{"identifier", "type_identifier", "field_identifier", "package_identifier"},
		DefinitionKinds: map[string]SymbolKind{
			"function_declaration":  KindFunction,
			"method_declaration":    KindMethod,
			"method_elem":           KindMethod,
			"type_spec":             KindType,
			"type_alias":            KindType,
			"const_spec":            KindConstant,
			"var_spec":              KindVariable,
			"short_var_declaration": KindVariable,
			"field_declaration":     KindField,
		},
		TypeRefinements: map[string]SymbolKind{
			"struct_type":    KindStruct,
			"interface_type": KindInterface,
		},
		NameFields: []string{"name", "left"},
		ScopeKinds: map[string]ScopeKind{
			"source_file":            ScopeModule,
			"function_declaration":   ScopeFunction,
			"method_declaration":     ScopeFunction,
			"func_literal":           ScopeFunction,
			"block":                  ScopeBlock,
			// Struct fields and interface methods are not visible unqualified.
			"field_declaration_list": ScopeClass,
			"interface_type":         ScopeClass,
		},
		ParameterKinds: []string{"parameter_list"},
		ImportKinds:    []string{"import_declaration"},
		DocStyle:       DocPrecedingComment,
		DocPrefix:      "//",
		MemberAccess: map[string]MemberAccess{
			"selector_expression": {Object: "operand", Member: "field"},
			"qualified_type":      {Object: "package", Member: "name"},
		},
		Keywords: []string{
			"break", "case", "chan", "const", "continue", "default", "defer", "else",
			"fallthrough", "for", "func", "go", "goto", "if", "import", "interface", "map",
			"package", "range", "return", "select", "struct", "switch", "type", "var",
		},
	}
}

func rustDescriptor() Descriptor {
	return Descriptor{
		ID:              Rust,
		Extensions:      []string{".rs"},
		Grammar:         tree_sitter_rust.Language,
		CommentKinds:    []string{"line_comment", "block_comment"},
		CommentPrefixes: []string{"//", "/*"},
		StringKinds:     []string{"string_literal", "raw_string_literal", "char_literal"},
		IdentifierKinds: []string{"identifier", "type_identifier", "field_identifier"},
		DefinitionKinds: map[string]SymbolKind{
			"function_item":           KindFunction,
			"function_signature_item": KindFunction,
			"struct_item":             KindStruct,
			"enum_item":               KindEnum,
			"union_item":              KindStruct,
			"trait_item":              KindInterface,
			"type_item":               KindType,
			"const_item":              KindConstant,
			"static_item":             KindVariable,
			"mod_item":                KindModule,
			"let_declaration":         KindVariable,
			"field_declaration":       KindField,
			"enum_variant":            KindConstant,
			"macro_definition":        KindFunction,
		},
		NameFields: []string{"name", "pattern"},
		ScopeKinds: map[string]ScopeKind{
			"source_file":            ScopeModule,
			"function_item":          ScopeFunction,
			"closure_expression":     ScopeFunction,
			"impl_item":              ScopeClass,
			"trait_item":             ScopeClass,
			"mod_item":               ScopeBlock,
			"block":                  ScopeBlock,
			"field_declaration_list": ScopeClass,
		},
		ParameterKinds: []string{"parameters", "closure_parameters"},
		ImportKinds:    []string{"use_declaration", "extern_crate_declaration", "mod_item"},
		SelfNames:      []string{"self"},
		MemberAccess: map[string]MemberAccess{
			"field_expression":  {Object: "value", Member: "field"},
			"scoped_identifier": {Object: "path", Member: "name"},
		},
		DocStyle:       DocPrecedingComment,
		DocPrefix:      "///",
		Keywords: []string{
			"as", "async", "await", "break", "const", "continue", "crate", "dyn", "else",
			"enum", "extern", "false", "fn", "for", "if", "impl", "in", "let", "loop",
			"match", "mod", "move", "mut", "pub", "ref", "return", "self", "Self", "static",
			"struct", "super", "trait", "true", "type", "unsafe", "use", "where", "while",
		},
	}
}

func javaDescriptor() Descriptor {
	return Descriptor{
		ID:              Java,
		Extensions:      []string{".java"},
		Grammar:         tree_sitter_java.Language,
		CommentKinds:    []string{"line_comment", "block_comment"},
		CommentPrefixes: []string{"//", "/*"},
		StringKinds:     []string{"string_literal", "character_literal"},
		IdentifierKinds: []string{"identifier", "type_identifier"},
		DefinitionKinds: map[string]SymbolKind{
			"class_declaration":           KindClass,
			"record_declaration":          KindClass,
			"interface_declaration":       KindInterface,
			"annotation_type_declaration": KindInterface,
			"enum_declaration":            KindEnum,
			"method_declaration":          KindMethod,
			"constructor_declaration":     KindMethod,
			"field_declaration":           KindField,
			"constant_declaration":        KindConstant,
			"local_variable_declaration":  KindVariable,
			"enum_constant":               KindConstant,
		},
		NameFields: []string{"name", "declarator"},
		ScopeKinds: map[string]ScopeKind{
			"program":                 ScopeModule,
			"class_declaration":       ScopeClass,
			"record_declaration":      ScopeClass,
			"interface_declaration":   ScopeClass,
			"enum_declaration":        ScopeClass,
			"method_declaration":      ScopeFunction,
			"constructor_declaration": ScopeFunction,
			"lambda_expression":       ScopeFunction,
			"block":                   ScopeBlock,
		},
		ParameterKinds: []string{"formal_parameters", "inferred_parameters", "catch_formal_parameter"},
		ImportKinds:    []string{"import_declaration"},
		SelfNames:      []string{"this"},
		MemberAccess: map[string]MemberAccess{
			"field_access":      {Object: "object", Member: "field"},
			"method_invocation": {Object: "object", Member: "name"},
			"scoped_identifier": {Object: "scope", Member: "name"},
		},
		ClassMembersInScope: true,
		DocStyle:            DocPrecedingComment,
		DocPrefix:           "/**",
		Keywords: []string{
			"abstract", "assert", "boolean", "break", "byte", "case", "catch", "char",
			"class", "const", "continue", "default", "do", "double", "else", "enum",
			"extends", "final", "finally", "float", "for", "goto", "if", "implements",
			"import", "instanceof", "int", "interface", "long", "native", "new", "package",
			"private", "protected", "public", "return", "short", "static", "strictfp",
			"super", "switch", "synchronized", "this", "throw", "throws", "transient",
			"try", "void", "volatile", "while",
		},
	}
}

// CSS and HTML only contribute import edges.
func cssDescriptor() Descriptor {
	return Descriptor{
		ID:              CSS,
		Extensions:      []string{".css"},
		Grammar:         tree_sitter_css.Language,
		CommentKinds:    []string{"comment"},
		CommentPrefixes: []string{"/*"},
		StringKinds:     []string{"string_value"},
		ImportKinds:     []string{"import_statement"},
	}
}

func htmlDescriptor() Descriptor {
	return Descriptor{
		ID:              HTML,
		Extensions:      []string{".html", ".htm"},
		Grammar:         tree_sitter_html.Language,
		CommentKinds:    []string{"comment"},
		CommentPrefixes: []string{"<!--"},
		ImportKinds:     []string{"script_element", "element"},
	}
}

var jsKeywords = []string{
	"await", "break", "case", "catch", "class", "const", "continue", "debugger",
	"default", "delete", "do", "else", "export", "extends", "false", "finally", "for",
	"function", "if", "import", "in", "instanceof", "let", "new", "null", "return",
	"static", "super", "switch", "this", "throw", "true", "try", "typeof", "var",
	"void", "while", "with", "yield",
}
