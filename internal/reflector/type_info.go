// Package reflector derives stable names for Go types. The registry uses
// them to map a value back to the tag it was registered under.
package reflector

import (
	"reflect"
	"sync"
)

var names sync.Map // reflect.Type -> TypeInfo

type TypeInfo struct {
	// Name is "pkg/path.TypeName", pointers unwrapped.
	Name string
	Type reflect.Type
}

func (ti TypeInfo) IsZero() bool { return ti.Type == nil }

// TypeInfoOf describes the dynamic type of x. It is zero for a nil x.
func TypeInfoOf(x any) TypeInfo { return TypeInfoForType(reflect.TypeOf(x)) }

// TypeInfoFor describes T. For interface types this is the interface itself.
func TypeInfoFor[T any]() TypeInfo { return TypeInfoForType(reflect.TypeFor[T]()) }

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if ti, ok := names.Load(t); ok {
		return ti.(TypeInfo)
	}

	elem := t
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	name := elem.String()
	if elem.Name() != "" {
		name = elem.PkgPath() + "." + elem.Name()
	}
	ti, _ := names.LoadOrStore(t, TypeInfo{Name: name, Type: elem})
	return ti.(TypeInfo)
}
