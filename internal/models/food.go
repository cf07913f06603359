// internal/models/food.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type FoodTag string

const (
	TagSoft   FoodTag = "soft"
	TagHard   FoodTag = "hard"
	TagSticky FoodTag = "sticky"
	TagChewy  FoodTag = "chewy"
	TagCold   FoodTag = "cold"
	TagHot    FoodTag = "hot"
	TagSugary FoodTag = "sugary"
	TagAcidic FoodTag = "acidic"
)

// AllFoodTags lists every tag in canonical order.
var AllFoodTags = []FoodTag{TagSoft, TagHard, TagSticky, TagChewy, TagCold, TagHot, TagSugary, TagAcidic}

// ParseFoodTag matches a tag name case-insensitively.
func ParseFoodTag(s string) (FoodTag, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllFoodTags {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Tags is a de-duplicated tag list. A missing tag means "unknown", not "false".
type Tags []FoodTag

// NewTags de-duplicates the given tags and puts them in canonical order.
func NewTags(tags ...FoodTag) Tags {
	seen := make(map[FoodTag]bool, len(tags))
	for _, t := range tags {
		seen[t] = true
	}
	out := Tags{}
	for _, t := range AllFoodTags {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// ParseTags keeps the recognised tag names and drops the rest.
func ParseTags(names []string) Tags {
	var tags []FoodTag
	for _, n := range names {
		if t, ok := ParseFoodTag(n); ok {
			tags = append(tags, t)
		}
	}
	return NewTags(tags...)
}

func (ts Tags) Has(tag FoodTag) bool {
	for _, t := range ts {
		if t == tag {
			return true
		}
	}
	return false
}

func (ts Tags) Strings() []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

type DietRestrictionType string

const (
	SoftOnly DietRestrictionType = "softOnly"
	NoHard   DietRestrictionType = "noHard"
	NoSticky DietRestrictionType = "noSticky"
	NoChewy  DietRestrictionType = "noChewy"
	NoHot    DietRestrictionType = "noHot"
	NoCold   DietRestrictionType = "noCold"
	NoSugary DietRestrictionType = "noSugary"
	NoAcidic DietRestrictionType = "noAcidic"
)

var AllRestrictionTypes = []DietRestrictionType{SoftOnly, NoHard, NoSticky, NoChewy, NoHot, NoCold, NoSugary, NoAcidic}

// ParseRestrictionType ignores case and spaces, so "No Hard" parses as noHard.
func ParseRestrictionType(s string) (DietRestrictionType, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	for _, r := range AllRestrictionTypes {
		if strings.ToLower(string(r)) == normalized {
			return r, true
		}
	}
	return "", false
}

type DietRestriction struct {
	Type    DietRestrictionType `json:"type" yaml:"type"`
	EndDate *time.Time          `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Reason  string              `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ParseRestriction builds a restriction from its text form. A date-only
// endDate names the last day the restriction applies, so it ends at the
// following midnight UTC. An RFC 3339 endDate is taken as the exact end.
func ParseRestriction(typ, endDate, reason string) (DietRestriction, error) {
	kind, ok := ParseRestrictionType(typ)
	if !ok {
		return DietRestriction{}, fmt.Errorf("unknown restriction type %q", typ)
	}
	out := DietRestriction{Type: kind, Reason: reason}
	if endDate == "" {
		return out, nil
	}
	end, err := parseEndDate(endDate)
	if err != nil {
		return DietRestriction{}, err
	}
	out.EndDate = &end
	return out, nil
}

func parseEndDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.AddDate(0, 0, 1), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end_date %q", s)
	}
	return t, nil
}

// ActiveAt reports whether the restriction still applies at t.
func (r DietRestriction) ActiveAt(t time.Time) bool {
	return r.EndDate == nil || r.EndDate.After(t)
}

type FoodVerdict string

const (
	VerdictAvoid          FoodVerdict = "avoid"
	VerdictCaution        FoodVerdict = "caution"
	VerdictLater          FoodVerdict = "later"
	VerdictSafe           FoodVerdict = "safe"
	VerdictCannotIdentify FoodVerdict = "cannotIdentify"
)

// AllVerdicts is ordered by severity, most severe first.
var AllVerdicts = []FoodVerdict{VerdictAvoid, VerdictCaution, VerdictLater, VerdictSafe, VerdictCannotIdentify}

// ParseVerdict matches a verdict name case-insensitively.
func ParseVerdict(s string) (FoodVerdict, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range AllVerdicts {
		if strings.ToLower(string(v)) == s {
			return v, true
		}
	}
	return "", false
}

// Severity is the position in AllVerdicts; lower is more severe.
func (v FoodVerdict) Severity() int {
	for i, candidate := range AllVerdicts {
		if candidate == v {
			return i
		}
	}
	return len(AllVerdicts)
}

func (v FoodVerdict) DisplayName() string {
	switch v {
	case VerdictSafe:
		return "Safe"
	case VerdictCaution:
		return "Caution"
	case VerdictAvoid:
		return "Not Safe"
	case VerdictLater:
		return "Wait"
	case VerdictCannotIdentify:
		return "Cannot Identify"
	}
	return string(v)
}
