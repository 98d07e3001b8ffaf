package codec

// IsTypePreserved reports whether the envelope uses the reserved tag
// vocabulary anywhere within the codec's depth ceiling. Unparseable input
// reports false.
func (c *Codec) IsTypePreserved(data []byte) bool {
	tree, err := parseTree(data, 2*c.maxDepth+16)
	if err != nil {
		return false
	}
	return usesTags(tree, c.maxDepth)
}

func usesTags(tree any, depth int) bool {
	if depth < 0 {
		return false
	}
	switch t := tree.(type) {
	case *rawObject:
		for _, k := range t.keys {
			if reservedTags[k] || k == keyRefID {
				return true
			}
		}
		for _, k := range t.keys {
			if usesTags(t.values[k], depth-1) {
				return true
			}
		}
	case []any:
		for _, el := range t {
			if usesTags(el, depth-1) {
				return true
			}
		}
	}
	return false
}
