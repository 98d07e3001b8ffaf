package codec

// Reserved tag keys. Every tagged envelope node is a JSON object carrying
// exactly one of these keys, optionally accompanied by a sibling "__refId".
// Plain user objects containing any "__"-prefixed key are wrapped in the
// __map form so the vocabulary never collides with user data.
const (
	tagDate        = "__date"
	tagRegexp      = "__regexp"
	tagMap         = "__map"
	tagSet         = "__set"
	tagBigInt      = "__bigint"
	tagNumber      = "__number"
	tagBoolean     = "__boolean"
	tagString      = "__string"
	tagNull        = "__null"
	tagUndefined   = "__undefined"
	tagBlob        = "__blob"
	tagArrayBuffer = "__arraybuffer"
	tagTypedArray  = "__typedarray"
	tagDataView    = "__dataview"
	tagError       = "__error"
	tagURL         = "__url"
	tagRef         = "__ref"
	tagCircularRef = "__circular_ref"
	tagArray       = "__array"

	keyRefID = "__refId"
)

// reservedTags is the detection vocabulary used by IsTypePreserved and the
// decoder's tag dispatch.
var reservedTags = map[string]bool{
	tagDate:        true,
	tagRegexp:      true,
	tagMap:         true,
	tagSet:         true,
	tagBigInt:      true,
	tagNumber:      true,
	tagBoolean:     true,
	tagString:      true,
	tagNull:        true,
	tagUndefined:   true,
	tagBlob:        true,
	tagArrayBuffer: true,
	tagTypedArray:  true,
	tagDataView:    true,
	tagError:       true,
	tagURL:         true,
	tagRef:         true,
	tagCircularRef: true,
	tagArray:       true,
}
