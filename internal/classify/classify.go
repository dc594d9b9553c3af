// Package classify maps entity identifiers to notification categories.
//
// Classification is a pure function of the entity identifier, optional
// registry metadata and optional user overrides. Signals are consulted in
// a fixed order: user override, device class, entity domain, word-bounded
// keyword patterns, and finally the info default. The first signal that
// produces a category wins.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hush-home/hushd/internal/errors"
)

// Category is the priority bucket assigned to a notification.
type Category string

// Categories in priority order, highest first. When several classification
// signals match, the higher priority category is returned.
const (
	CategorySafety   Category = "safety"
	CategorySecurity Category = "security"
	CategoryDevice   Category = "device"
	CategoryMotion   Category = "motion"
	CategoryInfo     Category = "info"
)

// ErrInvalidCategory indicates a category string that is not a member of the
// Category enumeration. Unknown values are never coerced to a default.
var ErrInvalidCategory = errors.NewStd("invalid category")

// Categories returns all categories in priority order, highest first.
func Categories() []Category {
	return []Category{CategorySafety, CategorySecurity, CategoryDevice, CategoryMotion, CategoryInfo}
}

// ParseCategory converts a string to a Category. The comparison is
// case-insensitive and ignores surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySafety:
		return CategorySafety, nil
	case CategorySecurity:
		return CategorySecurity, nil
	case CategoryDevice:
		return CategoryDevice, nil
	case CategoryMotion:
		return CategoryMotion, nil
	case CategoryInfo:
		return CategoryInfo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// String returns the category's enumeration value.
func (c Category) String() string {
	return string(c)
}

// DisplayName returns the human readable name used in API responses.
func (c Category) DisplayName() string {
	switch c {
	case CategorySafety:
		return "Safety"
	case CategorySecurity:
		return "Security"
	case CategoryDevice:
		return "Device"
	case CategoryMotion:
		return "Motion"
	default:
		return "Other"
	}
}

// Classification sources reported by ClassifyDetailed.
const (
	SourceOverride    = "override"
	SourceDeviceClass = "device_class"
	SourceDomain      = "domain"
	SourcePattern     = "pattern"
	SourceDefault     = "default"
)

// Metadata carries optional registry attributes for an entity. The original
// device class is consulted when the primary one is absent. Domain, when
// empty, is derived from the entity identifier prefix.
type Metadata struct {
	DeviceClass         string
	OriginalDeviceClass string
	Domain              string
}

// Result describes a classification outcome: the category, which signal
// produced it and a confidence score in [0, 1]. Pattern matches score by
// keyword specificity, exact signals score 1.0 and the info default 0.0.
type Result struct {
	Category   Category `json:"category"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
}

// deviceClassCategories maps registry device classes to categories.
var deviceClassCategories = map[string]Category{
	// Safety, highest priority
	"smoke":           CategorySafety,
	"carbon_monoxide": CategorySafety,
	"gas":             CategorySafety,
	"moisture":        CategorySafety,
	"heat":            CategorySafety,
	"safety":          CategorySafety,
	// Security
	"door":        CategorySecurity,
	"window":      CategorySecurity,
	"lock":        CategorySecurity,
	"garage_door": CategorySecurity,
	"opening":     CategorySecurity,
	"tamper":      CategorySecurity,
	// Device health
	"battery":          CategoryDevice,
	"battery_charging": CategoryDevice,
	"connectivity":     CategoryDevice,
	"problem":          CategoryDevice,
	"plug":             CategoryDevice,
	"power":            CategoryDevice,
	"update":           CategoryDevice,
	// Motion
	"motion":    CategoryMotion,
	"occupancy": CategoryMotion,
	"presence":  CategoryMotion,
	"moving":    CategoryMotion,
}

// domainCategories maps entity domains to categories, a fallback for
// entities without a device class.
var domainCategories = map[string]Category{
	"alarm_control_panel": CategorySecurity,
	"lock":                CategorySecurity,
	"siren":               CategorySecurity,
}

// patternSet holds the keywords for one category alongside their compiled
// word-bounded expressions.
type patternSet struct {
	category Category
	keywords []string
	patterns []*regexp.Regexp
}

// patternSets lists the keyword sets in strict priority order.
var patternSets = buildPatternSets()

func buildPatternSets() []patternSet {
	groups := []struct {
		category Category
		keywords []string
	}{
		{CategorySafety, []string{"smoke", "co2", "carbon", "leak", "flood", "water_sensor", "gas"}},
		{CategorySecurity, []string{"door", "window", "lock", "alarm", "siren", "garage"}},
		{CategoryDevice, []string{"battery", "offline", "unavailable", "connectivity"}},
		{CategoryMotion, []string{"motion", "occupancy", "presence"}},
	}

	sets := make([]patternSet, 0, len(groups))
	for _, g := range groups {
		set := patternSet{category: g.category, keywords: g.keywords}
		for _, keyword := range g.keywords {
			set.patterns = append(set.patterns, compileKeyword(keyword))
		}
		sets = append(sets, set)
	}
	return sets
}

// compileKeyword builds a case-insensitive expression that matches the
// keyword only when not adjacent to a letter on either side, so "door"
// matches "front_door" but not "indoor". Underscores, dots and digits are
// acceptable boundary characters.
func compileKeyword(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^a-zA-Z])` + regexp.QuoteMeta(keyword) + `(?:[^a-zA-Z]|$)`)
}

// Domain returns the entity identifier's prefix before the first dot, or ""
// when the identifier has no domain separator.
func Domain(entityID string) string {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[:i]
	}
	return ""
}

// Classify maps an entity identifier to a category. It returns an error only
// when a user override holds an unrecognized category string.
func Classify(entityID string, meta *Metadata, overrides map[string]string) (Category, error) {
	result, err := ClassifyDetailed(entityID, meta, overrides)
	if err != nil {
		return "", err
	}
	return result.Category, nil
}

// ClassifyDetailed classifies an entity and reports which signal produced
// the result together with a confidence score.
func ClassifyDetailed(entityID string, meta *Metadata, overrides map[string]string) (Result, error) {
	// An absent entity identifier always yields the info default
	if entityID == "" {
		return Result{Category: CategoryInfo, Source: SourceDefault, Confidence: 0.0}, nil
	}

	// User override wins over every other signal
	if raw, ok := overrides[entityID]; ok {
		category, err := ParseCategory(raw)
		if err != nil {
			return Result{}, err
		}
		return Result{Category: category, Source: SourceOverride, Confidence: 1.0}, nil
	}

	// Device class from the entity registry, original device class as fallback
	if meta != nil {
		deviceClass := meta.DeviceClass
		if deviceClass == "" {
			deviceClass = meta.OriginalDeviceClass
		}
		if category, ok := deviceClassCategories[deviceClass]; ok {
			return Result{Category: category, Source: SourceDeviceClass, Confidence: 1.0}, nil
		}
	}

	// Entity domain
	domain := ""
	if meta != nil {
		domain = meta.Domain
	}
	if domain == "" {
		domain = Domain(entityID)
	}
	if category, ok := domainCategories[domain]; ok {
		return Result{Category: category, Source: SourceDomain, Confidence: 1.0}, nil
	}

	// Keyword patterns in priority order, first category with a match wins.
	// Confidence scales with the longest matched keyword in that category.
	for i := range patternSets {
		set := &patternSets[i]
		longest := 0
		for j, pattern := range set.patterns {
			if len(set.keywords[j]) > longest && pattern.MatchString(entityID) {
				longest = len(set.keywords[j])
			}
		}
		if longest > 0 {
			confidence := 0.5 + float64(longest)/20
			if confidence > 1.0 {
				confidence = 1.0
			}
			return Result{Category: set.category, Source: SourcePattern, Confidence: confidence}, nil
		}
	}

	return Result{Category: CategoryInfo, Source: SourceDefault, Confidence: 0.0}, nil
}
