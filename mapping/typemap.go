// Package mapping converts between management-object types and values and
// their relational counterparts.
package mapping

import (
	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mgmt"
)

var descriptorTypes = map[string]catalog.RelationalType{
	mgmt.TypeObjectName: catalog.TypeString,

	mgmt.TypeInt:        catalog.TypeInteger,
	mgmt.TypeInteger:    catalog.TypeInteger,
	mgmt.TypeLong:       catalog.TypeLong,
	mgmt.TypeLongObject: catalog.TypeLong,
	mgmt.TypeBoolean:    catalog.TypeBoolean,
	mgmt.TypeBooleanObj: catalog.TypeBoolean,

	mgmt.TypeStringArray:  catalog.TypeStringArray,
	mgmt.TypeLongArray:    catalog.TypeLongArray,
	mgmt.TypeIntArray:     catalog.TypeIntegerArray,
	mgmt.TypeDoubleArray:  catalog.TypeDoubleArray,
	mgmt.TypeBooleanArray: catalog.TypeBooleanArray,
	mgmt.TypeByteArray:    catalog.TypeByteArray,
	mgmt.TypeCharArray:    catalog.TypeCharArray,
	mgmt.TypeFloatArray:   catalog.TypeFloatArray,
	mgmt.TypeShortArray:   catalog.TypeShortArray,

	mgmt.TypeCompositeData:      catalog.TypeJSON,
	mgmt.TypeTabularData:        catalog.TypeJSON,
	mgmt.TypeCompositeDataArray: catalog.TypeJSON,
	mgmt.TypeTabularDataArray:   catalog.TypeJSON,
}

// MapType returns the relational type of attributes declared with the given
// type descriptor. Unknown descriptors map to string.
func MapType(descriptor string) catalog.RelationalType {
	if t, ok := descriptorTypes[descriptor]; ok {
		return t
	}
	return catalog.TypeString
}
