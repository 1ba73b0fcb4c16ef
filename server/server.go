// Package server implements the single-user Server of the scheme
// (spec.md §4.3): it stores domain records keyed by an owner-chosen domain
// name, answers encrypted queries, and enforces the monotone-growth
// replacement rule on update.
package server

import (
	"sort"

	"github.com/jxguan/go-datastructures/bitarray"

	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/kblog"
)

// Server holds the domain records of a single-user deployment. Search is
// read-only and may run concurrently with other Search calls; callers must
// externally serialize Update against other Update/Search calls (spec.md §5).
type Server struct {
	index map[string]index.DomainRecord
}

// New creates a Server from a caller-supplied snapshot, which may be nil or
// empty for a fresh server.
func New(snapshot map[string]index.DomainRecord) *Server {
	s := &Server{index: make(map[string]index.DomainRecord, len(snapshot))}
	for domain, rec := range snapshot {
		s.index[domain] = rec
	}
	return s
}

// Search answers query (domain -> trapdoors, as produced by
// client.Client.CreateQuery or multiuser.Reader.CreateQuery), per spec.md
// §4.3.1. If any queried domain is unknown to the server the whole search
// aborts and returns nil: there is no partial-result behavior. The result
// is sorted descending by stored OPSE count; ties preserve the order
// buckets were encountered in, since OPSE order matches true-count order.
func (s *Server) Search(query map[string][]string) []index.SecureEntry {
	kblog.Start("server.Search")
	defer kblog.Log("server.Search")

	domains := make([]string, 0, len(query))
	for domain := range query {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var results []index.SecureEntry
	for _, domain := range domains {
		rec, ok := s.index[domain]
		if !ok {
			return nil
		}
		seen := bitarray.NewSparseBitArray()
		docPos := make(map[string]int, len(rec.Docs))
		for i, d := range rec.Docs {
			docPos[d] = i
		}

		for _, trapdoor := range query[domain] {
			entry, found := rec.Index[trapdoor]
			if !found {
				continue
			}
			pos, known := docPos[entry.ID]
			if !known {
				continue
			}
			if alreadySeen, _ := seen.GetBit(uint64(pos)); alreadySeen {
				continue
			}
			seen.SetBit(uint64(pos))
			results = append(results, entry)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OPSECount > results[j].OPSECount
	})
	return results
}

// Update installs rec under domain, per spec.md §4.3.2's growth discipline:
// if any existing domain not listed in reps has at least as many documents
// as rec (rec did not strictly grow past it), the update is rejected and
// that domain's name and document list are returned as a merge request.
// Otherwise every domain in reps is deleted, rec is installed under domain,
// and ok is true. Updating the reserved "sorting" domain name is always
// rejected.
func (s *Server) Update(domain string, rec index.DomainRecord, reps []string) (mergeDomain string, mergeDocs []string, ok bool) {
	kblog.Start("server.Update")
	defer kblog.Log("server.Update")

	if domain == index.ReservedSortingDomain {
		return "", nil, false
	}

	repSet := make(map[string]bool, len(reps))
	for _, r := range reps {
		repSet[r] = true
	}

	for dn, existing := range s.index {
		if repSet[dn] {
			continue
		}
		if len(existing.Docs) >= len(rec.Docs) {
			return dn, existing.Docs, false
		}
	}

	for _, r := range reps {
		delete(s.index, r)
	}
	s.index[domain] = rec
	return "", nil, true
}
