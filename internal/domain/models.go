// Package domain provides domain models and business logic for the Author
// Disambiguation Service.
package domain

import (
	"time"
)

// Attribute tags attached to virtual authors. Bookkeeping tags are engine
// state and are excluded from cluster-level aggregation.
const (
	TagName          = "name"
	TagCoauthor      = "coauthor"
	TagAffiliation   = "affiliation"
	TagBibRefRecPair = "bibrefrecpair"
	TagAuthorIndex   = "authorindex"
	TagUpdated       = "updated"
	TagConnected     = "connected"
)

// IsBookkeepingTag reports whether a tag is internal engine state rather than
// author data. Bookkeeping tags never contribute to RealAuthorData aggregates.
func IsBookkeepingTag(tag string) bool {
	switch tag {
	case TagUpdated, TagConnected, TagAuthorIndex, TagBibRefRecPair:
		return true
	default:
		return false
	}
}

// Attribute is a tagged value attached to a virtual author, e.g. a co-author
// name or an affiliation string harvested from the bibliographic record.
type Attribute struct {
	Tag   string
	Value string
}

// VirtualAuthor is one observed authorship attribution: a specific
// bibliographic reference together with the name string as it appeared there.
// The comparator never mutates a virtual author; only the state flags and
// cluster membership change over its lifetime.
type VirtualAuthor struct {
	// ID is the signature identifier assigned by the store.
	ID int64

	// Name is the observed name string, verbatim from the record.
	Name string

	// BucketKey is the last-name-derived grouping key used to bound the
	// candidate search during cluster assignment.
	BucketKey string

	// Probability is the confidence that this attribution denotes a genuine
	// individual. Defaults near 1.0 for directly observed signatures.
	Probability float64

	// Connected is set once the signature has been evaluated and assigned;
	// connected signatures are skipped on subsequent passes.
	Connected bool

	// Updated marks the signature for (re-)evaluation, either because it is
	// new or because upstream record data changed.
	Updated bool

	// Attributes holds the tagged data harvested from the record.
	Attributes []Attribute

	CreatedAt time.Time
}

// AttributeValues returns the values of all attributes with the given tag.
func (va *VirtualAuthor) AttributeValues(tag string) []string {
	var values []string
	for _, attr := range va.Attributes {
		if attr.Tag == tag {
			values = append(values, attr.Value)
		}
	}
	return values
}

// Membership records one virtual author attached to a real author, with the
// compatibility probability at attachment time.
type Membership struct {
	VirtualAuthorID int64
	Probability     float64
}

// RealAuthor is the system's current belief about one distinct individual,
// aggregating one or more virtual author signatures. Clusters grow by
// attachment; they are never merged automatically.
type RealAuthor struct {
	ID        int64
	Members   []Membership
	CreatedAt time.Time
}

// HasMember reports whether the given virtual author belongs to this cluster.
func (ra *RealAuthor) HasMember(vaID int64) bool {
	for _, m := range ra.Members {
		if m.VirtualAuthorID == vaID {
			return true
		}
	}
	return false
}

// RealAuthorData is one row of the denormalized aggregate index over all
// virtual author attributes attached to a real author. Its lifecycle is tied
// 1:1 to cluster membership: created on the first occurrence of a (tag, value)
// pair, incremented on repeats, decremented and eventually deleted as
// contributing members are detached.
type RealAuthorData struct {
	RealAuthorID int64
	Tag          string
	Value        string

	// Count is the total number of occurrences of this (tag, value) pair
	// across all members.
	Count int

	// NumVAs is the number of distinct members that contributed the pair.
	NumVAs int

	// SumProb is the sum of membership probabilities of the contributors.
	SumProb float64
}

// AssignmentKind enumerates the possible results of one cluster assignment.
type AssignmentKind string

const (
	// AssignmentCreated means no compatible cluster existed and a new real
	// author was created for the signature.
	AssignmentCreated AssignmentKind = "created"

	// AssignmentAttached means the signature was attached to exactly one
	// existing real author.
	AssignmentAttached AssignmentKind = "attached"

	// AssignmentAttachedMultiple means multi-assignment was enabled and the
	// signature was attached to every equally compatible real author.
	AssignmentAttachedMultiple AssignmentKind = "attached_multiple"

	// AssignmentDeferred means several candidates tied, multi-assignment was
	// disabled, and the signature was left unassigned for a later pass.
	AssignmentDeferred AssignmentKind = "deferred"

	// AssignmentAlreadyAssigned means the signature already belonged to a
	// cluster and the call was an idempotent no-op.
	AssignmentAlreadyAssigned AssignmentKind = "already_assigned"
)

// AssignmentOutcome is the tagged result of one Assign call. Callers branch on
// Kind instead of inferring state from store side effects.
type AssignmentOutcome struct {
	Kind AssignmentKind

	// RealAuthorIDs lists the affected clusters: the created cluster, the
	// single attachment target, or every tied target for multi-assignment.
	// Empty for deferred outcomes.
	RealAuthorIDs []int64

	// Score is the winning compatibility score. 0 for created and deferred
	// outcomes with no candidates.
	Score float64
}

// Assigned reports whether the outcome left the signature attached to at
// least one cluster.
func (o AssignmentOutcome) Assigned() bool {
	switch o.Kind {
	case AssignmentCreated, AssignmentAttached, AssignmentAttachedMultiple, AssignmentAlreadyAssigned:
		return true
	default:
		return false
	}
}
