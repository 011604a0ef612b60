/*
resource.go - Contribution category registration and lookup

PURPOSE:
  Provides a registry for domain packages to register the categories they
  compute (health insurance, pension, ...). The factory uses it to reject
  unknown category names in rate documents, and the social-insurance
  engine takes its line order from the registered Order values.

HOW IT WORKS:
  1. Domain packages define their Category implementations
  2. Domain packages register them in init()
  3. Factory validates names; ListCategories drives line order

USAGE:
  // In socialinsurance/types.go
  func init() {
      generic.RegisterCategory(CategoryHealth)
  }

  // In factory
  c := generic.LookupCategory("health")

SEE ALSO:
  - socialinsurance/types.go: insurance categories
  - factory/payroll.go: JSON parsing via the registry
*/
package generic

import (
	"sort"
	"sync"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category identifies a computed contribution line.
type Category interface {
	// CategoryID returns the unique identifier, e.g. "health".
	CategoryID() string

	// Label returns the payslip line name.
	Label() string

	// Order positions the category on a payslip (ascending).
	Order() int
}

// =============================================================================
// CATEGORY REGISTRY
// =============================================================================

var (
	categoryRegistry = make(map[string]Category)
	registryMu       sync.RWMutex
)

// RegisterCategory adds a category to the global registry.
// Call this from domain package init() functions.
func RegisterCategory(c Category) {
	registryMu.Lock()
	defer registryMu.Unlock()
	categoryRegistry[c.CategoryID()] = c
}

// LookupCategory finds a registered category by ID.
// Returns nil if not found.
func LookupCategory(id string) Category {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return categoryRegistry[id]
}

// ListCategories returns all registered categories in payslip order.
func ListCategories() []Category {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Category, 0, len(categoryRegistry))
	for _, c := range categoryRegistry {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order() != result[j].Order() {
			return result[i].Order() < result[j].Order()
		}
		return result[i].CategoryID() < result[j].CategoryID()
	})
	return result
}
