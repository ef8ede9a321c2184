package watch

// Diff returns the products of current whose id is absent from previous, ordered by id.
// Removed products and field changes under an unchanged id are not reported.
func Diff(previous, current ProductMap) []Product {
	var added []Product
	for _, id := range current.IDs() {
		if _, seen := previous[id]; seen {
			continue
		}
		added = append(added, current[id])
	}
	return added
}
