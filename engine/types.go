/*
Package engine provides the visit compliance and billing engine.

PURPOSE:
  Promoters visit stores on behalf of brands. Each (store, brand) pair has a
  target visit frequency and a unit price. This package turns a materialized
  set of visits, targets and prices into compliance progress, billing reports
  with running totals, and dashboard snapshots.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: PromoterID, StoreID, BrandID, VisitID
  - References: the display data carried alongside an identifier
  - Status: visit lifecycle (pending, in_progress, completed, cancelled)
  - Role/Scope: who is asking, collapsed into one tagged variant
  - Visit, Assignment, PromoterAssignment, PriceEntry: engine inputs

DESIGN PRINCIPLES:
  1. Read-only inputs: the engine never mutates the collections it receives
  2. Precision: every monetary value is a decimal.Decimal
  3. Type Safety: distinct ID types prevent mixing store and brand IDs
  4. No I/O in the pure components; fetching belongs to the Store

SEE ALSO:
  - price.go: PriceResolver
  - filter.go: VisitFilter
  - compliance.go: ComplianceCalculator
  - report.go: ReportAggregator
  - dashboard.go: DashboardAssembler
*/
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PromoterID int64
type StoreID int64
type BrandID int64
type VisitID int64

// PromoterRef is a promoter identity with its display name.
type PromoterRef struct {
	ID   PromoterID
	Name string
}

// StoreRef is a store identity with its display name and optional store number.
type StoreRef struct {
	ID     StoreID
	Name   string
	Number *int
}

// BrandRef is a brand identity with its display name.
type BrandRef struct {
	ID   BrandID
	Name string
}

// PairKey identifies a (store, brand) pair. It is the key of both the price
// table and the target frequency table.
type PairKey struct {
	StoreID StoreID
	BrandID BrandID
}

func (k PairKey) String() string {
	return fmt.Sprintf("store=%d brand=%d", k.StoreID, k.BrandID)
}

// =============================================================================
// VISIT STATUS
// =============================================================================

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// legacyStatusCodes maps the numeric codes still found in older records.
var legacyStatusCodes = map[int]Status{
	1: StatusPending,
	2: StatusInProgress,
	3: StatusCompleted,
	4: StatusCancelled,
}

// ParseStatus accepts a status name or a legacy numeric code.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(s); err == nil {
		if st, ok := legacyStatusCodes[code]; ok {
			return st, nil
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	switch st := Status(strings.ReplaceAll(s, "-", "_")); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Counts reports whether a visit with this status feeds any aggregation.
func (s Status) Counts() bool { return s != StatusCancelled }

// =============================================================================
// ROLE - Single tagged variant for every role check
// =============================================================================

type Role string

const (
	RolePromoter Role = "promoter"
	RoleAnalyst  Role = "analyst"
	RoleManager  Role = "manager"
)

var legacyRoleCodes = map[int]Role{
	1: RolePromoter,
	2: RoleAnalyst,
	3: RoleManager,
}

// ParseRole accepts a role name or a legacy numeric code (1 promoter,
// 2 analyst, 3 manager).
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(s); err == nil {
		if r, ok := legacyRoleCodes[code]; ok {
			return r, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	switch r := Role(s); r {
	case RolePromoter, RoleAnalyst, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Scope is the resolved requester. Only RolePromoter restricts visibility;
// for that role Identity is the promoter the caller is authenticated as.
type Scope struct {
	Role     Role
	Identity PromoterID
}

func (s Scope) IsPromoter() bool { return s.Role == RolePromoter }

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// Visit is a single promoter attendance record.
type Visit struct {
	ID       VisitID
	Promoter PromoterRef
	Store    StoreRef
	Brand    BrandRef
	Date     Date
	Status   Status

	// PriceOverride keeps a historically billed price even if the price
	// table changes later. nil = use the price table.
	PriceOverride *decimal.Decimal
}

func (v Visit) Pair() PairKey { return PairKey{StoreID: v.Store.ID, BrandID: v.Brand.ID} }

// Assignment is a (store, brand) pair with its target visit frequency per
// reporting window.
type Assignment struct {
	Store           StoreRef
	Brand           BrandRef
	TargetFrequency int
}

func (a Assignment) Pair() PairKey { return PairKey{StoreID: a.Store.ID, BrandID: a.Brand.ID} }

// PromoterAssignment links a promoter to a (store, brand) pair they cover.
type PromoterAssignment struct {
	PromoterID PromoterID
	StoreID    StoreID
	BrandID    BrandID
}

func (pa PromoterAssignment) Pair() PairKey {
	return PairKey{StoreID: pa.StoreID, BrandID: pa.BrandID}
}

// PriceEntry maps a (store, brand) pair to a unit price.
// At most one entry exists per pair.
type PriceEntry struct {
	StoreID StoreID
	BrandID BrandID
	Price   decimal.Decimal
}

func (p PriceEntry) Pair() PairKey { return PairKey{StoreID: p.StoreID, BrandID: p.BrandID} }

// Promoter is the grouping key of every report.
type Promoter struct {
	ID   PromoterID
	Name string
}

func (p Promoter) Ref() PromoterRef { return PromoterRef{ID: p.ID, Name: p.Name} }
