package provider

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/tracegen/tracegen/internal/report"
)

const directive = "//tracegen:provider"

// Scanner collects provider specifications from Go sources. Declarations
// that cannot be turned into a valid provider produce diagnostics through
// the phase-bound reporter and are skipped; scanning never fails outright.
type Scanner struct {
	fset *token.FileSet
	r    *report.Phase

	specs []Specification
	seen  map[string]token.Position
}

func NewScanner(fset *token.FileSet, r *report.Phase) *Scanner {
	return &Scanner{
		fset: fset,
		r:    r,
		seen: make(map[string]token.Position),
	}
}

// Specifications returns all providers collected so far, in declaration
// order.
func (s *Scanner) Specifications() []Specification {
	return s.specs
}

// Scan walks the given files looking for annotated interface declarations.
func (s *Scanner) Scan(insp *inspector.Inspector) {
	nodeFilter := []ast.Node{
		(*ast.File)(nil),
		(*ast.GenDecl)(nil),
	}

	var pkg string
	insp.Preorder(nodeFilter, func(node ast.Node) {
		switch n := node.(type) {
		case *ast.File:
			pkg = n.Name.Name
		case *ast.GenDecl:
			s.scanDecl(pkg, n)
		}
	})
}

// ScanFile is the single-file variant of Scan, mostly for tests and tooling
// that already holds a parsed file.
func (s *Scanner) ScanFile(file *ast.File) {
	s.Scan(inspector.New([]*ast.File{file}))
}

func (s *Scanner) scanDecl(pkg string, decl *ast.GenDecl) {
	if decl.Tok != token.TYPE {
		return
	}

	for _, spec := range decl.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		name, found := providerDirective(decl.Doc, ts.Doc)
		if !found {
			continue
		}

		s.scanProvider(pkg, decl, ts, name)
	}
}

func (s *Scanner) scanProvider(pkg string, decl *ast.GenDecl, ts *ast.TypeSpec, name string) {
	pos := s.fset.Position(ts.Pos())

	iface, ok := ts.Type.(*ast.InterfaceType)
	if !ok {
		s.r.Reportf(report.CodeNonInterfaceTarget, pos,
			"%s is marked as a provider but is not an interface", ts.Name.Name)
		return
	}

	if name == "" {
		name = snakeCase(ts.Name.Name)
	}
	if !ValidName(name) {
		s.r.Reportf(report.CodeBadProviderName, pos,
			"provider name %q must match [a-z_][a-z0-9_]*", name)
		return
	}

	if prev, ok := s.seen[name]; ok {
		s.r.Reportf(report.CodeDuplicateProvider, pos,
			"provider %s already declared at %s:%d", name, prev.Filename, prev.Line)
		return
	}
	s.seen[name] = pos

	out := Specification{
		Name:     name,
		TypeName: ts.Name.Name,
		Package:  pkg,
		Source:   s.declSource(decl),
	}

	for _, method := range iface.Methods.List {
		ft, ok := method.Type.(*ast.FuncType)
		if !ok {
			s.r.Reportf(report.CodeEmbeddedInterface, s.fset.Position(method.Pos()),
				"provider %s embeds another interface, which has no probe meaning", name)
			continue
		}

		for _, ident := range method.Names {
			if probe, ok := s.scanProbe(name, ident.Name, ft); ok {
				out.Probes = append(out.Probes, probe)
			}
		}
	}

	s.specs = append(s.specs, out)
}

func (s *Scanner) scanProbe(provider, goName string, ft *ast.FuncType) (Probe, bool) {
	pos := s.fset.Position(ft.Pos())

	if ft.Results != nil && len(ft.Results.List) > 0 {
		s.r.Reportf(report.CodeProbeReturnsValue, pos,
			"probe %s.%s returns a value; firing a probe can never fail and returns nothing", provider, goName)
		return Probe{}, false
	}

	probe := Probe{
		Name:   snakeCase(goName),
		GoName: goName,
	}

	if ft.Params != nil {
		for _, field := range ft.Params.List {
			if len(field.Names) == 0 {
				s.r.Reportf(report.CodeUnnamedArg, s.fset.Position(field.Pos()),
					"probe %s.%s has an unnamed argument; names become native argument names", provider, goName)
				return Probe{}, false
			}

			ctype, ok := cTypeForExpr(field.Type)
			if !ok {
				s.r.Reportf(report.CodeUnsupportedArgType, s.fset.Position(field.Type.Pos()),
					"probe %s.%s argument type %s has no native representation", provider, goName, types.ExprString(field.Type))
				return Probe{}, false
			}

			for _, ident := range field.Names {
				probe.Args = append(probe.Args, Arg{
					Name:   ident.Name,
					GoType: types.ExprString(field.Type),
					CType:  ctype,
				})
			}
		}
	}

	if len(probe.Args) > maxProbeArgs {
		s.r.Reportf(report.CodeTooManyArgs, pos,
			"probe %s.%s has %d arguments, the native probe macros stop at %d", provider, goName, len(probe.Args), maxProbeArgs)
		return Probe{}, false
	}

	return probe, true
}

// maxProbeArgs is the highest argument count <sys/sdt.h> defines a probe
// macro for.
const maxProbeArgs = 12

// declSource renders the declaration text for the generated file header.
func (s *Scanner) declSource(decl *ast.GenDecl) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, s.fset, decl); err != nil {
		return ""
	}

	return buf.String()
}

// providerDirective looks for the provider directive in the given comment
// groups. The directive may carry an explicit provider name:
//
//	//tracegen:provider
//	//tracegen:provider my_name
func providerDirective(groups ...*ast.CommentGroup) (name string, found bool) {
	for _, group := range groups {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			if c.Text == directive {
				return "", true
			}
			if rest, ok := strings.CutPrefix(c.Text, directive+" "); ok {
				return strings.TrimSpace(rest), true
			}
		}
	}

	return "", false
}
