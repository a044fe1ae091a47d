package migration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	migrationClassName = "Migration"
	dependenciesName   = "dependencies"
	indentUnit         = "    "
)

// Source is a parsed migration file. It keeps the file content so the
// dependencies statement can be replaced without re-reading.
type Source struct {
	path    string
	content []byte

	dependencies []Dependency
	// verbatim holds list entries that are not (app, migration) tuples,
	// such as swappable_dependency calls. They are written back unchanged.
	verbatim   []verbatimEntry
	start, end int
	multiline  bool
	indent     string

	// locateErr is set when the dependencies statement could not be found.
	locateErr error
}

// ParseSource reads and parses the python file at path.
func ParseSource(path string) (*Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrReadSource, path, err)
	}
	return ParseSourceBytes(path, content)
}

// ParseSourceBytes parses content as if it had been read from path.
func ParseSourceBytes(path string, content []byte) (*Source, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %w", ErrSyntax, path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w in %s", ErrSyntax, path)
	}

	src := &Source{path: path, content: content}
	src.locate(root)
	return src, nil
}

func (s *Source) locate(root *sitter.Node) {
	class := findClass(root, s.content, migrationClassName)
	if class == nil {
		s.locateErr = fmt.Errorf("%w in file %s", ErrNoMigrationClass, s.path)
		return
	}
	assign := findAssignment(class, s.content, dependenciesName)
	if assign == nil {
		s.locateErr = fmt.Errorf("%w in file %s", ErrNoDependencies, s.path)
		return
	}
	value := assign.ChildByFieldName("right")
	if value == nil || value.Type() != "list" {
		s.locateErr = fmt.Errorf("%w in file %s", ErrDependenciesNotList, s.path)
		return
	}

	s.start = int(assign.StartByte())
	s.end = int(assign.EndByte())
	s.multiline = bytes.IndexByte(s.content[s.start:s.end], '\n') >= 0
	s.indent = lineIndent(s.content, s.start)
	s.dependencies, s.verbatim = listDependencies(value, s.content)
}

// verbatimEntry is the source text of a list entry and its position among
// all entries.
type verbatimEntry struct {
	index int
	text  string
}

// Dependencies returns the declared dependencies. Malformed entries are
// skipped and a missing statement yields an empty list.
func (s *Source) Dependencies() []Dependency {
	if s.locateErr != nil {
		return nil
	}
	return slices.Clone(s.dependencies)
}

// DependencyLocation returns the byte range of the whole dependencies
// assignment.
func (s *Source) DependencyLocation() (start, end int, err error) {
	if s.locateErr != nil {
		return 0, 0, s.locateErr
	}
	return s.start, s.end, nil
}

// ReplaceDependencies returns the file content with the dependencies
// statement replaced by deps. Entries that are not dependency tuples keep
// their text and position. All other bytes are kept as they are.
func (s *Source) ReplaceDependencies(deps []Dependency) ([]byte, error) {
	start, end, err := s.DependencyLocation()
	if err != nil {
		return nil, err
	}
	literal := statement(mergeEntries(deps, s.verbatim), s.multiline, s.indent)
	out := make([]byte, 0, len(s.content)-(end-start)+len(literal))
	out = append(out, s.content[:start]...)
	out = append(out, literal...)
	out = append(out, s.content[end:]...)
	return out, nil
}

// Content returns the source bytes as read.
func (s *Source) Content() []byte {
	return s.content
}

// DependenciesStatement renders the assignment statement. In multiline form
// tuples go one per line, one indent level below the statement.
func DependenciesStatement(deps []Dependency, multiline bool, indent string) string {
	return statement(mergeEntries(deps, nil), multiline, indent)
}

func statement(entries []string, multiline bool, indent string) string {
	if !multiline || len(entries) == 0 {
		return dependenciesName + " = [" + strings.Join(entries, ", ") + "]"
	}
	var b strings.Builder
	b.WriteString(dependenciesName + " = [\n")
	for _, e := range entries {
		b.WriteString(indent + indentUnit + e + ",\n")
	}
	b.WriteString(indent + "]")
	return b.String()
}

// mergeEntries renders deps in order and puts each verbatim entry back at
// its original index. Surplus deps go at the end.
func mergeEntries(deps []Dependency, verbatim []verbatimEntry) []string {
	entries := make([]string, 0, len(deps)+len(verbatim))
	next := 0
	for _, v := range verbatim {
		for len(entries) < v.index && next < len(deps) {
			entries = append(entries, deps[next].String())
			next++
		}
		entries = append(entries, v.text)
	}
	for _, d := range deps[next:] {
		entries = append(entries, d.String())
	}
	return entries
}

func findClass(root *sitter.Node, content []byte, name string) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "decorated_definition" {
			node = node.ChildByFieldName("definition")
			if node == nil {
				continue
			}
		}
		if node.Type() != "class_definition" {
			continue
		}
		if ident := node.ChildByFieldName("name"); ident != nil && ident.Content(content) == name {
			return node
		}
	}
	return nil
}

func findAssignment(class *sitter.Node, content []byte, target string) *sitter.Node {
	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			expr := stmt.NamedChild(j)
			if expr.Type() != "assignment" {
				continue
			}
			left := expr.ChildByFieldName("left")
			if left != nil && left.Type() == "identifier" && left.Content(content) == target {
				return expr
			}
		}
	}
	return nil
}

func listDependencies(list *sitter.Node, content []byte) ([]Dependency, []verbatimEntry) {
	deps := []Dependency{}
	var verbatim []verbatimEntry
	for i, item := range namedChildren(list) {
		if d, ok := tupleDependency(item, content); ok {
			deps = append(deps, d)
			continue
		}
		verbatim = append(verbatim, verbatimEntry{index: i, text: item.Content(content)})
	}
	return deps, verbatim
}

func tupleDependency(item *sitter.Node, content []byte) (Dependency, bool) {
	if item.Type() != "tuple" {
		return Dependency{}, false
	}
	elems := namedChildren(item)
	if len(elems) != 2 {
		return Dependency{}, false
	}
	app, ok := stringValue(elems[0], content)
	if !ok {
		return Dependency{}, false
	}
	raw, ok := stringValue(elems[1], content)
	if !ok {
		return Dependency{}, false
	}
	name, err := ParseFileName(raw)
	if err != nil {
		return Dependency{}, false
	}
	return Dependency{App: app, Name: name}, true
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func stringValue(n *sitter.Node, content []byte) (string, bool) {
	switch n.Type() {
	case "string":
		return unquotePython(n.Content(content))
	case "concatenated_string":
		var b strings.Builder
		for _, part := range namedChildren(n) {
			v, ok := stringValue(part, content)
			if !ok {
				return "", false
			}
			b.WriteString(v)
		}
		return b.String(), true
	}
	return "", false
}

// unquotePython decodes a python str literal. Bytes and f-strings are
// rejected.
func unquotePython(lit string) (string, bool) {
	i := 0
	for i < len(lit) && strings.IndexByte("rRbBuUfF", lit[i]) >= 0 {
		i++
	}
	prefix := strings.ToLower(lit[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := lit[i:]

	var quote string
	switch {
	case strings.HasPrefix(body, `"""`), strings.HasPrefix(body, `'''`):
		quote = body[:3]
	case strings.HasPrefix(body, `"`), strings.HasPrefix(body, `'`):
		quote = body[:1]
	default:
		return "", false
	}
	if len(body) < 2*len(quote) || !strings.HasSuffix(body, quote) {
		return "", false
	}
	body = body[len(quote) : len(body)-len(quote)]

	if strings.Contains(prefix, "r") || !strings.Contains(body, `\`) {
		return body, true
	}

	var b strings.Builder
	b.WriteByte('"')
	for j := 0; j < len(body); j++ {
		c := body[j]
		switch {
		case c == '\\' && j+1 < len(body) && body[j+1] == '\'':
			b.WriteByte('\'')
			j++
		case c == '\\' && j+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[j+1])
			j++
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	out, err := strconv.Unquote(b.String())
	if err != nil {
		return "", false
	}
	return out, true
}

func lineIndent(content []byte, offset int) string {
	lineStart := bytes.LastIndexByte(content[:offset], '\n') + 1
	line := content[lineStart:offset]
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return string(line[:n])
}
