package feed

import "slices"

// Categories lists the food categories a post can carry.
var Categories = []string{"cooked", "baked", "produce", "dairy", "meat", "packaged", "drinks", "other"}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	return slices.Contains(Categories, c)
}
