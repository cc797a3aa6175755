// Package aot renders a captured cache profile as Go source so a build
// can ship with the stub kinds and cap overrides a warm run arrived at.
package aot

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/snapshot"
	"github.com/dave/jennifer/jen"
)

const icPath = "github.com/chazu/baseline/ic"

// Result contains the generated code and any warnings.
type Result struct {
	Code     string
	Warnings []string
}

// Options controls code generation.
type Options struct {
	// Package is the package clause of the generated file. Defaults to
	// "profile".
	Package string
}

// Caps derives per-family cap overrides from a snapshot: the longest
// optimized chain observed for each family.
func Caps(snap *snapshot.Snapshot) map[ic.Kind]int {
	caps := make(map[ic.Kind]int)
	for _, sc := range snap.Scripts {
		for _, site := range sc.Sites {
			if len(site.Stubs) == 0 {
				continue
			}
			fb, ok := ic.KindByName(site.Stubs[len(site.Stubs)-1].Kind)
			if !ok {
				continue
			}
			n := 0
			for _, st := range site.Stubs {
				if st.Optimized {
					n++
				}
			}
			if n > 0 && n > caps[fb.FallbackKind()] {
				caps[fb.FallbackKind()] = n
			}
		}
	}
	return caps
}

// kindIdent maps a kind name such as "GetProp_Native" to its exported
// constant in package ic.
func kindIdent(name string) string {
	return strings.ReplaceAll(name, "_", "")
}

// Generate renders snap as a Go file.
func Generate(snap *snapshot.Snapshot, opts Options) (*Result, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = "profile"
	}
	res := &Result{}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by baseline; DO NOT EDIT.")
	f.PackageComment(fmt.Sprintf("Package %s holds the inline-cache profile %s.", pkg, snap.ID))

	f.Comment("SnapshotID identifies the profile this file was generated from.")
	f.Const().Id("SnapshotID").Op("=").Lit(snap.ID)
	f.Line()

	f.Comment("Label is the label the profile was captured with.")
	f.Const().Id("Label").Op("=").Lit(snap.Label)
	f.Line()

	scripts := make([]jen.Code, 0, len(snap.Scripts))
	for _, sc := range snap.Scripts {
		sites := make([]jen.Code, 0, len(sc.Sites))
		for _, site := range sc.Sites {
			kinds := make([]jen.Code, 0, len(site.Stubs))
			for _, st := range site.Stubs {
				k, ok := ic.KindByName(st.Kind)
				if !ok {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s pc %d: unknown kind %q", sc.Name, site.PC, st.Kind))
					continue
				}
				kinds = append(kinds, jen.Qual(icPath, kindIdent(k.String())))
			}
			sites = append(sites, jen.Lit(int(site.PC)).Op(":").Values(kinds...))
		}
		scripts = append(scripts, jen.Lit(sc.Name).Op(":").Values(sites...))
	}

	f.Comment("Chains maps each script and pc to the stub kinds observed at that site,")
	f.Comment("fallback last.")
	f.Var().Id("Chains").Op("=").Map(jen.String()).Map(jen.Uint32()).Index().Qual(icPath, "Kind").Values(scripts...)
	f.Line()

	caps := Caps(snap)
	families := make([]ic.Kind, 0, len(caps))
	for k := range caps {
		families = append(families, k)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	entries := make([]jen.Code, 0, len(families))
	for _, k := range families {
		entries = append(entries, jen.Qual(icPath, kindIdent(k.String())).Op(":").Lit(caps[k]))
	}

	f.Comment("Caps returns cap overrides sized to the chains in the profile.")
	f.Func().Id("Caps").Params().Map(jen.Qual(icPath, "Kind")).Int().Block(
		jen.Return(jen.Map(jen.Qual(icPath, "Kind")).Int().Values(entries...)),
	)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render error: %w", err)
	}
	res.Code = buf.String()
	return res, nil
}
