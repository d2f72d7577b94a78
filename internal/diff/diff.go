// Package diff computes the minimal set of RRSET changes needed to
// converge a replica zone's record set toward a source zone's record set.
// It is a pure function: no I/O, no retries, no logging.
package diff

import (
	"sort"
	"strings"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
)

// ChangeOp is the kind of mutation to apply to one (name, type) RRSET.
type ChangeOp string

const (
	OpReplace ChangeOp = "REPLACE"
	OpDelete  ChangeOp = "DELETE"
)

// Change is one RRSET-level mutation emitted by Compute.
type Change struct {
	Key    domain.RecordSetKey
	Op     ChangeOp
	RRSet  domain.RecordSet // populated for OpReplace, zero for OpDelete
}

// DefaultManagedTypes is the minimum managed-type set required by §4.3.
func DefaultManagedTypes() map[string]bool {
	return map[string]bool{
		"A": true, "AAAA": true, "CNAME": true, "MX": true, "TXT": true,
		"SRV": true, "NS": true, "PTR": true, "CAA": true, "SOA": true,
	}
}

// Compute returns the ordered sequence of changes needed to converge
// replicaRRSets to sourceRRSets, restricted to managedTypes.
//
// Ordering is deterministic (sorted by name then type) so that repeated
// computation over the same inputs always yields the same change list,
// which matters for idempotent-reconcile testing (property 1) even though
// PowerDNS accepts the set unordered within one patch call.
func Compute(sourceRRSets, replicaRRSets []domain.RecordSet, managedTypes map[string]bool) []Change {
	sourceByKey := indexByKey(sourceRRSets)
	replicaByKey := indexByKey(replicaRRSets)

	var changes []Change

	for key, src := range sourceByKey {
		if !managedTypes[key.Type] {
			continue
		}
		rep, ok := replicaByKey[key]
		if !ok || !rrsetsEqual(src, rep) {
			changes = append(changes, Change{Key: key, Op: OpReplace, RRSet: src})
		}
	}

	for key, rep := range replicaByKey {
		if !managedTypes[rep.Type] {
			continue
		}
		if _, ok := sourceByKey[key]; !ok {
			changes = append(changes, Change{Key: key, Op: OpDelete})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Key.Name != changes[j].Key.Name {
			return changes[i].Key.Name < changes[j].Key.Name
		}
		return changes[i].Key.Type < changes[j].Key.Type
	})

	return changes
}

func indexByKey(rrsets []domain.RecordSet) map[domain.RecordSetKey]domain.RecordSet {
	m := make(map[domain.RecordSetKey]domain.RecordSet, len(rrsets))
	for _, rs := range rrsets {
		m[rs.Key()] = rs
	}
	return m
}

// rrsetsEqual compares TTL and the record multiset; name/type are assumed
// equal (callers compare within one key already).
func rrsetsEqual(a, b domain.RecordSet) bool {
	if a.TTL != b.TTL {
		return false
	}
	return recordsEqual(a.Records, b.Records)
}

// recordsEqual compares two record lists as unordered multisets of
// (content, disabled), with content trimmed of surrounding whitespace
// before comparison (TXT quoting is preserved verbatim, per §4.3).
func recordsEqual(a, b []domain.Record) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[domain.Record]int, len(a))
	for _, r := range a {
		counts[normalizeRecord(r)]++
	}
	for _, r := range b {
		nr := normalizeRecord(r)
		if counts[nr] == 0 {
			return false
		}
		counts[nr]--
	}
	return true
}

func normalizeRecord(r domain.Record) domain.Record {
	return domain.Record{Content: strings.TrimSpace(r.Content), Disabled: r.Disabled}
}
