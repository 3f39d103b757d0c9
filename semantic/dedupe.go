package semantic

// Dedupe drops blocks that duplicate a functional unit already kept, in
// input order:
//   - at most one Search block survives, the first;
//   - a Form with a search field takes that same single search slot, and is
//     dropped if the slot is already taken;
//   - Action blocks with equal normalised text collapse to the first.
//
// Other blocks pass through untouched.
func Dedupe(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	searchTaken := false
	actionTexts := make(map[string]bool)

	for _, b := range blocks {
		switch b.Kind {
		case Search:
			if searchTaken {
				continue
			}
			searchTaken = true
		case Form:
			if b.Meta.HasSearch {
				if searchTaken {
					continue
				}
				searchTaken = true
			}
		case Action:
			key := b.Meta.Text
			if key == "" {
				key = NormaliseText(b.Node.Text())
			}
			if actionTexts[key] {
				continue
			}
			actionTexts[key] = true
		}
		out = append(out, b)
	}
	return out
}
