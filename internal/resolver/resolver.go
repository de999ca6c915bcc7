/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package resolver implements the ordered (regex, substitution,
// storage, guard) chain (spec §4.1) that maps an opaque request ID to
// a concrete storage backend and object key.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// AllowSet represents a guard field that is either "All" or an
// explicit allow-list.
type AllowSet struct {
	All    bool
	Values map[string]bool
}

// AllowAll is the default, permissive AllowSet.
func AllowAll() AllowSet { return AllowSet{All: true} }

// NewAllowSet builds an explicit allow-list.
func NewAllowSet(values []string) AllowSet {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return AllowSet{Values: m}
}

func (a AllowSet) permits(v string) bool {
	if a.All {
		return true
	}
	return a.Values[v]
}

func (a AllowSet) permitsAll(vs []string) bool {
	for _, v := range vs {
		if !a.permits(v) {
			return false
		}
	}
	return true
}

// Guard is a resolver entry's acceptance predicate over a Query, per
// spec §6's allow_guard fields. Every field defaults to "accept all".
type Guard struct {
	AllowReferenceNames AllowSet
	AllowFields         AllowSet
	AllowTags           AllowSet
	AllowFormats        []htsget.Format // empty means all
	AllowClasses        []htsget.Class  // empty means all
	AllowIntervalStart  *int64
	AllowIntervalEnd    *int64
}

// NewGuard returns a Guard that accepts everything, the spec default.
func NewGuard() Guard {
	return Guard{AllowReferenceNames: AllowAll(), AllowFields: AllowAll(), AllowTags: AllowAll()}
}

// Accepts reports whether q satisfies every guard predicate.
func (g Guard) Accepts(q htsget.Query) bool {
	if len(g.AllowFormats) > 0 && !containsFormat(g.AllowFormats, q.Format) {
		return false
	}
	if len(g.AllowClasses) > 0 && !containsClass(g.AllowClasses, q.Class) {
		return false
	}
	if q.ReferenceName != nil && !g.AllowReferenceNames.permits(*q.ReferenceName) {
		return false
	}
	if !g.AllowFields.permitsAll(q.Fields) {
		return false
	}
	if !g.AllowTags.permitsAll(q.Tags) {
		return false
	}
	if g.AllowIntervalStart != nil && q.Interval.HasStart && *q.Interval.Start < *g.AllowIntervalStart {
		return false
	}
	if g.AllowIntervalEnd != nil && q.Interval.HasEnd && *q.Interval.End > *g.AllowIntervalEnd {
		return false
	}
	return true
}

func containsFormat(fs []htsget.Format, f htsget.Format) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

func containsClass(cs []htsget.Class, c htsget.Class) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// EntryConfig is the declarative form of a resolver entry, as parsed
// from configuration.
type EntryConfig struct {
	Regex        string
	Substitution string
	StorageName  string
	Guard        Guard
}

// entry is a validated, compiled EntryConfig.
type entry struct {
	regex        *regexp.Regexp
	substitution string
	storageName  string
	guard        Guard
}

// Chain is the ordered, validated resolver chain plus the storage
// backends its entries reference by name.
type Chain struct {
	entries  []entry
	backends map[string]storage.Backend
}

// NewChain compiles and validates cfgs in order, binding each entry's
// storage name against backends. Every regex must compile and every
// "$name"/"$n" reference in its substitution must resolve to a capture
// group that regex actually declares.
func NewChain(cfgs []EntryConfig, backends map[string]storage.Backend) (*Chain, error) {
	entries := make([]entry, 0, len(cfgs))
	for i, cfg := range cfgs {
		re, err := regexp.Compile(cfg.Regex)
		if err != nil {
			return nil, fmt.Errorf("resolver entry %d: invalid regex %q: %w", i, cfg.Regex, err)
		}
		if err := validateSubstitution(cfg.Substitution, re); err != nil {
			return nil, fmt.Errorf("resolver entry %d: %w", i, err)
		}
		if _, ok := backends[cfg.StorageName]; !ok {
			return nil, fmt.Errorf("resolver entry %d: storage %q is not configured", i, cfg.StorageName)
		}
		entries = append(entries, entry{
			regex:        re,
			substitution: cfg.Substitution,
			storageName:  cfg.StorageName,
			guard:        cfg.Guard,
		})
	}
	return &Chain{entries: entries, backends: backends}, nil
}

// validateSubstitution rejects a substitution string referencing a
// named or positional capture group the regex does not declare.
func validateSubstitution(substitution string, re *regexp.Regexp) error {
	names := re.SubexpNames()
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			nameSet[n] = true
		}
	}
	numGroups := re.NumSubexp()

	for i := 0; i < len(substitution); i++ {
		if substitution[i] != '$' {
			continue
		}
		rest := substitution[i+1:]
		name, consumed := parseGroupReference(rest)
		if consumed == 0 {
			continue
		}
		if n, err := strconv.Atoi(name); err == nil {
			if n < 0 || n > numGroups {
				return fmt.Errorf("substitution references group $%d but regex has %d groups", n, numGroups)
			}
		} else if !nameSet[name] {
			return fmt.Errorf("substitution references undefined named group $%s", name)
		}
		i += consumed
	}
	return nil
}

// parseGroupReference extracts a "${name}" or bare "name"/"n" token
// immediately following a "$" in a substitution string.
func parseGroupReference(rest string) (string, int) {
	if len(rest) == 0 {
		return "", 0
	}
	if rest[0] == '{' {
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return "", 0
		}
		return rest[1:end], end + 1
	}
	end := 0
	for end < len(rest) && isGroupChar(rest[end]) {
		end++
	}
	return rest[:end], end
}

func isGroupChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Resolve evaluates the chain against rawID and query in order,
// skipping non-matching or guard-rejecting entries, returning the
// first accepted ResolvedQuery. A guard rejection is not fatal — later
// entries are still tried — but the chain as a whole returns NotFound
// if nothing matches.
func (c *Chain) Resolve(rawID string, q htsget.Query) (htsget.ResolvedQuery, error) {
	for _, e := range c.entries {
		match := e.regex.FindStringSubmatchIndex(rawID)
		if match == nil {
			continue
		}
		if !e.guard.Accepts(q) {
			continue
		}
		key := string(e.regex.ExpandString(nil, e.substitution, rawID, match))
		backend := c.backends[e.storageName]
		return htsget.ResolvedQuery{Query: q, Storage: backend, Key: key}, nil
	}
	return htsget.ResolvedQuery{}, htserr.NotFound.New("no resolver entry matched id %q", rawID)
}

// Backend looks up a configured storage backend by the name resolver
// entries reference it by.
func (c *Chain) Backend(name string) (storage.Backend, bool) {
	b, ok := c.backends[name]
	return b, ok
}
