package provider

import "go/ast"

// cTypeForExpr maps a Go parameter type expression to the C type the native
// wrapper receives it as. The mapping is intentionally conservative: probe
// arguments cross a C ABI boundary, so only types with an obvious native
// representation are accepted.
func cTypeForExpr(e ast.Expr) (string, bool) {
	switch t := e.(type) {
	case *ast.Ident:
		switch t.Name {
		case "string":
			return "const char *", true
		case "int", "int64":
			return "int64_t", true
		case "int32", "rune":
			return "int32_t", true
		case "int16":
			return "int16_t", true
		case "int8":
			return "int8_t", true
		case "uint", "uint64", "uintptr":
			return "uint64_t", true
		case "uint32":
			return "uint32_t", true
		case "uint16":
			return "uint16_t", true
		case "uint8", "byte":
			return "uint8_t", true
		case "bool":
			return "int", true
		}

	case *ast.StarExpr:
		// Pointers degrade to their address; the probe consumer decides what
		// to do with it.
		return "void *", true

	case *ast.SelectorExpr:
		if id, ok := t.X.(*ast.Ident); ok && id.Name == "unsafe" && t.Sel.Name == "Pointer" {
			return "void *", true
		}
	}

	return "", false
}
