package engine

// =============================================================================
// VISIT FILTER
// =============================================================================

// VisitFilter selects visits. Every field is optional; a nil field imposes no
// constraint. Scope is applied before the explicit fields: a promoter scope
// always restricts to the scope's own identity, whatever PromoterID says.
type VisitFilter struct {
	PromoterID *PromoterID
	StoreID    *StoreID
	BrandID    *BrandID
	Start      *Date // inclusive lower bound
	End        *Date // inclusive upper bound
	Scope      Scope
}

// ForWindow returns a filter bounded by w and scoped by scope.
func ForWindow(w Window, scope Scope) VisitFilter {
	start, end := w.Start, w.End
	return VisitFilter{Start: &start, End: &end, Scope: scope}
}

// Validate rejects a range whose end precedes its start.
func (f VisitFilter) Validate() error {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return &MalformedRangeError{Start: *f.Start, End: *f.End}
	}
	return nil
}

// EffectivePromoter returns the promoter constraint after role scoping.
func (f VisitFilter) EffectivePromoter() *PromoterID {
	if f.Scope.IsPromoter() {
		id := f.Scope.Identity
		return &id
	}
	return f.PromoterID
}

// Query returns the coarse constraints a Store can push down. The result of
// the store query must still go through FilterVisits.
func (f VisitFilter) Query() VisitQuery {
	return VisitQuery{PromoterID: f.EffectivePromoter(), Start: f.Start, End: f.End}
}

// Match reports whether v passes the filter. It does not validate the range.
func (f VisitFilter) Match(v Visit) bool {
	if f.Scope.IsPromoter() {
		if v.Promoter.ID != f.Scope.Identity {
			return false
		}
	} else if f.PromoterID != nil && v.Promoter.ID != *f.PromoterID {
		return false
	}
	if f.StoreID != nil && v.Store.ID != *f.StoreID {
		return false
	}
	if f.BrandID != nil && v.Brand.ID != *f.BrandID {
		return false
	}
	if f.Start != nil && v.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && v.Date.After(*f.End) {
		return false
	}
	return true
}

// FilterVisits returns the visits matching f. Output order follows input
// order but is not part of the contract; consumers sort as they need.
// Unknown ids yield an empty result, never an error.
func FilterVisits(visits []Visit, f VisitFilter) ([]Visit, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]Visit, 0, len(visits))
	for _, v := range visits {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
