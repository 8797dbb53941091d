package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/engine/resolver"
	"codeintel/internal/shared/util"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

func render[T any](w io.Writer, jsonOut bool, v T, text func(io.Writer, T) error) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w, v)
}

func renderSymbols(w io.Writer, res ports.SymbolResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range res.Matches {
		kind := m.Kind
		if m.ScopeKind != "" && m.ScopeKind != "module" {
			kind += " (" + m.ScopeKind + ")"
		}
		fmt.Fprintf(tw, "%s:%d:%d\t%s\t%s\n", m.File, m.Line, m.Column, kind, m.Snippet)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	th := newTheme(w)
	summary := fmt.Sprintf("%s in %s searched",
		english.Plural(res.TotalMatches, "match", "matches"),
		english.Plural(res.FilesSearched, "file", ""))
	if res.Truncated {
		summary += fmt.Sprintf(", showing first %s", humanize.Comma(int64(len(res.Matches))))
	}
	fmt.Fprintln(w, th.paint(th.muted, summary))
	renderWarnings(w, res.Warnings)
	return nil
}

func renderDependencies(w io.Writer, res ports.DependencyResult) error {
	th := newTheme(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch {
	case res.Graph != nil:
		fmt.Fprintln(w, th.paint(th.title, fmt.Sprintf("import graph of %s (depth %d)", res.Graph.Root, res.Graph.Depth)))
		for _, n := range util.SortedStringKeys(res.Graph.Nodes) {
			targets := res.Graph.Nodes[n]
			if len(targets) == 0 {
				fmt.Fprintf(tw, "%s\t(no local imports)\n", n)
				continue
			}
			fmt.Fprintf(tw, "%s\t-> %s\n", n, strings.Join(targets, ", "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, c := range res.Graph.Cycles {
			fmt.Fprintln(w, th.paint(th.removed, fmt.Sprintf("cycle: %s -> %s", strings.Join(c, " -> "), c[0])))
		}

	case res.Operation == "dependents":
		for _, e := range res.Dependents {
			fmt.Fprintf(tw, "%s:%d\t%s\n", e.Source, e.Line, e.Module)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w, th.paint(th.muted, fmt.Sprintf("%s of %s", english.Plural(len(res.Dependents), "dependent", ""), res.Target)))

	default:
		for _, e := range res.Imports {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Line, e.Module, describeTarget(e.Target))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w, th.paint(th.muted, fmt.Sprintf("%s in %s", english.Plural(len(res.Imports), "import", ""), res.Target)))
	}
	renderWarnings(w, res.Warnings)
	return nil
}

func describeTarget(t resolver.Target) string {
	switch {
	case t.Kind == resolver.TargetExternal && t.Package != "":
		return "external (" + t.Package + ")"
	case t.Kind == resolver.TargetExternal, t.Kind == "":
		return "unresolved"
	case t.Kind == resolver.TargetDirectory:
		return t.Path + "/"
	}
	return t.Path
}

func renderRefactor(w io.Writer, res ports.RefactorResult) error {
	th := newTheme(w)
	for _, fc := range res.FileChanges {
		fmt.Fprint(w, th.diff(fc.Diff))
		if !strings.HasSuffix(fc.Diff, "\n") {
			fmt.Fprintln(w)
		}
	}

	changes := english.Plural(res.TotalChanges, "occurrence", "")
	files := english.Plural(res.FilesModified, "file", "")
	switch {
	case res.TotalChanges == 0:
		fmt.Fprintln(w, th.paint(th.muted, fmt.Sprintf("no occurrences of %s in %s", res.OldName, res.Scope)))
	case res.Applied:
		fmt.Fprintln(w, th.paint(th.success, fmt.Sprintf("renamed %s to %s: %s in %s", res.OldName, res.NewName, changes, files)))
		for _, b := range res.Backups {
			fmt.Fprintf(w, "backup: %s\n", b)
		}
	default:
		fmt.Fprintln(w, th.paint(th.title, fmt.Sprintf("renaming %s to %s would change %s in %s (plan %s)",
			res.OldName, res.NewName, changes, files, res.PlanID)))
	}
	renderWarnings(w, res.Warnings)
	return nil
}

type cancelledPlan struct {
	PlanID string `json:"plan_id"`
	State  string `json:"state"`
}

func renderCancelled(w io.Writer, c cancelledPlan) error {
	_, err := fmt.Fprintf(w, "cancelled plan %s\n", c.PlanID)
	return err
}

type languageRow struct {
	ID         registry.Language `json:"id"`
	Extensions []string          `json:"extensions"`
	Filenames  []string          `json:"filenames,omitempty"`
	Symbols    bool              `json:"symbols"`
}

func languageRows(reg *registry.Registry) []languageRow {
	var rows []languageRow
	for _, id := range reg.Languages() {
		d, _ := reg.Get(id)
		rows = append(rows, languageRow{
			ID:         id,
			Extensions: d.Extensions,
			Filenames:  d.Filenames,
			Symbols:    d.Searchable(),
		})
	}
	return rows
}

func renderLanguages(w io.Writer, rows []languageRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tFILES\tSYMBOLS")
	for _, r := range rows {
		claims := append(append([]string(nil), r.Extensions...), r.Filenames...)
		symbols := "yes"
		if !r.Symbols {
			symbols = "imports only"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, strings.Join(claims, " "), symbols)
	}
	return tw.Flush()
}

func renderWarnings(w io.Writer, warnings []errors.Warning) {
	if len(warnings) == 0 {
		return
	}
	th := newTheme(w)
	fmt.Fprintln(w, th.paint(th.warning, english.Plural(len(warnings), "warning", "")+":"))
	for _, wn := range warnings {
		fmt.Fprintf(w, "  %s\n", wn.String())
	}
}
