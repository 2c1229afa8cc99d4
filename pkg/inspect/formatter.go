package inspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes type, ownership, category and contexts
	ShowMetadata bool

	// ShowIDs includes subject and context IDs alongside names
	ShowIDs bool

	// ShowProperties lists client properties below each subject
	ShowProperties bool

	// ShowReserved also lists framework bookkeeping properties
	ShowReserved bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata:   true,
		ShowIDs:        false,
		ShowProperties: true,
		IndentWidth:    2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	indent := strings.Repeat(" ", depth*width)
	return indent + content
}

// FormatValue formats a property value for display.
func (f *Formatter) FormatValue(v property.Value) string {
	switch v.Kind() {
	case property.KindInvalid:
		return "null"
	case property.KindBlob:
		b, _ := v.AsBlob()
		if len(b) > 16 {
			return fmt.Sprintf("0x%x... (%d bytes)", b[:16], len(b))
		}
		return fmt.Sprintf("0x%x", b)
	default:
		return v.String()
	}
}

// FormatContexts formats a list of context IDs.
func FormatContexts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// FormatLimit formats a subject limit.
func FormatLimit(limit int) string {
	if limit < 0 {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

// FormatTree formats an observer tree for display.
func (f *Formatter) FormatTree(tree *ObserverInfo) string {
	var sb strings.Builder
	f.formatObserver(&sb, tree, 0)
	return sb.String()
}

// FormatSubject formats a single subject and its child tree.
func (f *Formatter) FormatSubject(s *SubjectInfo) string {
	var sb strings.Builder
	f.formatSubject(&sb, s, 0)
	return sb.String()
}

func (f *Formatter) formatObserver(sb *strings.Builder, o *ObserverInfo, depth int) {
	header := fmt.Sprintf("Observer %s", o.Name)
	if f.ShowIDs {
		header += fmt.Sprintf(" (context %d)", o.ID)
	}
	if f.ShowMetadata {
		var meta []string
		if o.Limit >= 0 {
			meta = append(meta, "limit "+FormatLimit(o.Limit))
		}
		if o.Access != observer.FullAccess {
			meta = append(meta, GetAccessModeName(o.Access))
		}
		if len(o.Filters) > 0 {
			meta = append(meta, "filters "+strings.Join(o.Filters, ","))
		}
		if len(meta) > 0 {
			header += " [" + strings.Join(meta, "; ") + "]"
		}
	}
	sb.WriteString(f.Indent(depth, header) + "\n")

	if len(o.Subjects) == 0 {
		sb.WriteString(f.Indent(depth+1, "(no subjects)") + "\n")
		return
	}
	for i := range o.Subjects {
		f.formatSubject(sb, &o.Subjects[i], depth+1)
	}
}

func (f *Formatter) formatSubject(sb *strings.Builder, s *SubjectInfo, depth int) {
	line := s.Name
	if f.ShowIDs {
		line = fmt.Sprintf("[%d] %s", s.ID, s.Name)
	}
	if s.ObjectName != s.Name {
		line += fmt.Sprintf(" (%s)", s.ObjectName)
	}
	if f.ShowMetadata {
		meta := []string{s.Type, GetPolicyName(s.Ownership)}
		if s.Category != "" {
			meta = append(meta, "category "+s.Category)
		}
		if len(s.Contexts) > 1 || f.ShowIDs {
			meta = append(meta, "contexts "+FormatContexts(s.Contexts))
		}
		line += " <" + strings.Join(meta, ", ") + ">"
	}
	sb.WriteString(f.Indent(depth, line) + "\n")

	if f.ShowProperties {
		for _, p := range s.Properties {
			if !p.HasValue || (p.Reserved && !f.ShowReserved) {
				continue
			}
			row := fmt.Sprintf("%s = %s", p.Name, f.FormatValue(p.Value))
			if p.Shared {
				row += " (shared)"
			}
			sb.WriteString(f.Indent(depth+1, row) + "\n")
		}
	}

	if s.Child != nil {
		f.formatObserver(sb, s.Child, depth+1)
	}
}

// FormatStats formats tree statistics.
func (f *Formatter) FormatStats(st Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Observers: %d\n", st.Observers)
	fmt.Fprintf(&sb, "Subjects:  %d (%d shared)\n", st.Subjects, st.Shared)
	fmt.Fprintf(&sb, "Edges:     %d\n", st.Edges)
	fmt.Fprintf(&sb, "Depth:     %d\n", st.MaxDepth)
	for _, name := range st.PolicyNames() {
		sb.WriteString(f.Indent(1, fmt.Sprintf("%s: %d", name, st.ByPolicy[name])) + "\n")
	}
	return sb.String()
}

// FormatTree formats the tree for display using formatter, or the default
// formatter when nil.
func (i *Inspector) FormatTree(tree *ObserverInfo, formatter *Formatter) string {
	if formatter == nil {
		formatter = NewFormatter()
	}
	return formatter.FormatTree(tree)
}
