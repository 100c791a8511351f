// Package chain groups decorator and interceptor declarations by target and
// produces the wrapping plan consumed by the synthesizer.
//
// Order semantics: ascending declared order means innermost first. The entry
// with order 0 wraps the original implementation directly; each subsequent
// entry wraps the previous result, so the highest order is the outermost
// wrapper in the resolved call chain. This definition is the single source
// of truth for both the wrapping algorithm and generated documentation.
package chain

import (
	"fmt"
	"sort"

	"wireplan/internal/aggregate"
	"wireplan/internal/classify"
	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
	"wireplan/internal/source"
)

// Entry is one decorator or interceptor declaration, grouped by target.
type Entry struct {
	Decorating string // declaring type
	Target     string // target capability or concrete type
	Order      int64
	Module     string
	Span       source.Span
}

// Group is the resolved wrap sequence for one target, innermost first.
type Group struct {
	Target string
	Wraps  []Entry
}

// MemberInterceptors is the ordered interceptor list for one capability
// member. It exists for every member of every intercepted type, even when
// empty, so synthesis can emit a uniform forwarding shape.
type MemberInterceptors struct {
	Member  string
	Entries []Entry
}

// Interception is the per-type merge of class-level and member-level
// interceptor declarations.
type Interception struct {
	Type    string
	Members []MemberInterceptors
}

// Plan is the full chain resolution output.
type Plan struct {
	Decorators    []Group        // sorted by target
	Interceptions []Interception // sorted by type
}

// Resolve collects decorator and interceptor markers across the merged set,
// validates contracts, and orders every group deterministically: declared
// order ascending, ties broken by declaring-type name.
func Resolve(m *aggregate.Merged, r diag.Reporter) *Plan {
	snap := m.Snapshot
	decorators := make(map[string][]Entry)
	interceptors := make(map[string][]Entry)

	for i := range snap.Modules {
		mod := &snap.Modules[i]
		for j := range mod.Types {
			decl := &mod.Types[j]
			if _, hasRoles := m.Roles[decl.Name]; !hasRoles {
				continue // inaccessible or role-less declarations contribute nothing
			}
			for k := range decl.Markers {
				mk := &decl.Markers[k]
				switch mk.Name {
				case snapshot.MarkerDecorator:
					if e, ok := newEntry(decl, mod.Name, mk, snap, true, r); ok {
						decorators[e.Target] = append(decorators[e.Target], e)
					}
				case snapshot.MarkerInterceptor:
					// Interceptors wrap member invocations rather than
					// substituting the capability, so no contract check.
					if e, ok := newEntry(decl, mod.Name, mk, snap, false, r); ok {
						interceptors[e.Target] = append(interceptors[e.Target], e)
					}
				}
			}
		}
	}

	plan := &Plan{}
	for _, target := range sortedKeys(decorators) {
		entries := decorators[target]
		sortEntries(entries)
		checkOrderGaps(target, entries, r)
		plan.Decorators = append(plan.Decorators, Group{Target: target, Wraps: entries})
	}
	plan.Interceptions = resolveInterceptions(m, interceptors, r)
	return plan
}

// newEntry validates one decorator/interceptor marker. A declaration that
// does not implement the advertised target contract is a fatal defect: the
// generated wrapper would not satisfy the capability it replaces.
func newEntry(decl *snapshot.TypeDecl, module string, mk *snapshot.Marker, snap *snapshot.Snapshot, requireContract bool, r diag.Reporter) (Entry, bool) {
	target := mk.Str("target")
	if target == "" {
		diag.ReportError(r, diag.ChainUnknownTarget, decl.Span,
			fmt.Sprintf("type %q: %s marker has no target", decl.Name, mk.Name)).Emit()
		return Entry{}, false
	}
	_, isCapability := snap.Capability(target)
	if requireContract && isCapability && !implements(decl, target) {
		diag.ReportError(r, diag.ChainContract, decl.Span,
			fmt.Sprintf("type %q declares itself a %s for %q but does not implement it",
				decl.Name, mk.Name, target)).Emit()
		return Entry{}, false
	}
	order, _ := mk.Int("order")
	return Entry{
		Decorating: decl.Name,
		Target:     target,
		Order:      order,
		Module:     module,
		Span:       decl.Span,
	}, true
}

func implements(decl *snapshot.TypeDecl, capability string) bool {
	for _, c := range decl.Implements {
		if c == capability {
			return true
		}
	}
	return false
}

// sortEntries: total order per target — declared order ascending, then
// declaring-type name lexicographic for determinism.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].Decorating < entries[j].Decorating
	})
}

func checkOrderGaps(target string, entries []Entry, r diag.Reporter) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Order > entries[i-1].Order+1 {
			diag.ReportWarning(r, diag.ChainOrderGap, entries[i].Span,
				fmt.Sprintf("decorator order for %q jumps from %d to %d; gaps make insert positions ambiguous",
					target, entries[i-1].Order, entries[i].Order)).Emit()
		}
	}
}

// resolveInterceptions merges class-level and member-level interceptor
// declarations per intercepted type. A marker with an explicit members list
// applies to those members only; without one it applies to every member of
// the target capability.
func resolveInterceptions(m *aggregate.Merged, byTarget map[string][]Entry, r diag.Reporter) []Interception {
	snap := m.Snapshot

	type memberKey struct{ typ, member string }
	perMember := make(map[memberKey][]Entry)
	intercepted := make(map[string][]string) // type -> capability members

	for target, entries := range byTarget {
		sortEntries(entries)

		cap, isCapability := snap.Capability(target)
		for i := range m.Services {
			svc := &m.Services[i]
			roles := m.Roles[svc.Name]
			if roles.Has(classify.RoleDecorator) || roles.Has(classify.RoleInterceptor) {
				// Wrappers implement the target capability themselves but
				// only the wrapped service's invocations are intercepted.
				continue
			}
			var members []string
			switch {
			case isCapability && implements(svc.Decl, target):
				members = cap.Members
			case svc.Name == target:
				members = allCapabilityMembers(snap, svc.Decl)
			default:
				continue
			}
			if _, seen := intercepted[svc.Name]; !seen {
				intercepted[svc.Name] = allCapabilityMembers(snap, svc.Decl)
			}
			for _, e := range entries {
				selected := selectedMembers(snap, e, members, r)
				for _, member := range selected {
					key := memberKey{svc.Name, member}
					perMember[key] = append(perMember[key], e)
				}
			}
		}
	}

	out := make([]Interception, 0, len(intercepted))
	for _, typ := range sortedKeys(intercepted) {
		ic := Interception{Type: typ}
		for _, member := range intercepted[typ] {
			entries := perMember[memberKey{typ, member}]
			sortEntries(entries)
			ic.Members = append(ic.Members, MemberInterceptors{Member: member, Entries: entries})
		}
		out = append(out, ic)
	}
	return out
}

// selectedMembers filters an interceptor's explicit member list against the
// members actually exposed by the target.
func selectedMembers(snap *snapshot.Snapshot, e Entry, members []string, r diag.Reporter) []string {
	decl, ok := snap.Type(e.Decorating)
	if !ok {
		return members
	}
	mk, ok := decl.Marker(snapshot.MarkerInterceptor)
	if !ok {
		return members
	}
	explicit := mk.Strings("members")
	if len(explicit) == 0 {
		return members
	}
	available := make(map[string]struct{}, len(members))
	for _, m := range members {
		available[m] = struct{}{}
	}
	var out []string
	for _, name := range explicit {
		if _, ok := available[name]; !ok {
			diag.ReportWarning(r, diag.ChainUnknownTarget, e.Span,
				fmt.Sprintf("interceptor %q names member %q, which %q does not expose",
					e.Decorating, name, e.Target)).Emit()
			continue
		}
		out = append(out, name)
	}
	return out
}

// allCapabilityMembers returns the union of member names across every
// capability a type implements, deduplicated, in first-seen order.
func allCapabilityMembers(snap *snapshot.Snapshot, decl *snapshot.TypeDecl) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, capName := range decl.Implements {
		cap, ok := snap.Capability(capName)
		if !ok {
			continue
		}
		for _, member := range cap.Members {
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
			out = append(out, member)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
