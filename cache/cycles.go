package cache

import "reflect"

// refKey identifies a reference by address and static type; a struct and its
// first field share an address but are not the same reference.
type refKey struct {
	addr uintptr
	typ  reflect.Type
}

// breakCycles returns v unchanged when no pointer, map or slice reachable
// through exported fields refers back to one of its ancestors. Otherwise it
// returns a copy in which every such back reference is nil. References shared
// by siblings are not cycles and are kept.
func breakCycles(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if !hasCycle(rv, map[refKey]bool{}, map[refKey]bool{}) {
		return v
	}
	return copyAcyclic(rv, map[refKey]bool{}).Interface()
}

func hasCycle(v reflect.Value, onPath, done map[refKey]bool) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return false
		}
		key := refKey{addr: v.Pointer(), typ: v.Type()}
		if onPath[key] {
			return true
		}
		if done[key] {
			return false
		}
		onPath[key] = true
		cyclic := hasCycleBelow(v, onPath, done)
		delete(onPath, key)
		done[key] = true
		return cyclic
	case reflect.Interface:
		if v.IsNil() {
			return false
		}
		return hasCycle(v.Elem(), onPath, done)
	case reflect.Struct, reflect.Array:
		return hasCycleBelow(v, onPath, done)
	}
	return false
}

func hasCycleBelow(v reflect.Value, onPath, done map[refKey]bool) bool {
	switch v.Kind() {
	case reflect.Pointer:
		return hasCycle(v.Elem(), onPath, done)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if hasCycle(iter.Value(), onPath, done) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if hasCycle(v.Index(i), onPath, done) {
				return true
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() && hasCycle(v.Field(i), onPath, done) {
				return true
			}
		}
	}
	return false
}

func copyAcyclic(v reflect.Value, onPath map[refKey]bool) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return v
		}
		key := refKey{addr: v.Pointer(), typ: v.Type()}
		if onPath[key] {
			return reflect.Zero(v.Type())
		}
		onPath[key] = true
		defer delete(onPath, key)
		return copyBelow(v, onPath)
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyAcyclic(v.Elem(), onPath))
		return out
	case reflect.Struct, reflect.Array:
		return copyBelow(v, onPath)
	}
	return v
}

func copyBelow(v reflect.Value, onPath map[refKey]bool) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyAcyclic(v.Elem(), onPath))
		return out
	case reflect.Map:
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyAcyclic(iter.Value(), onPath))
		}
		return out
	case reflect.Slice:
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyAcyclic(v.Index(i), onPath))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyAcyclic(v.Index(i), onPath))
		}
		return out
	case reflect.Struct:
		// unexported fields keep their original values; codecs skip them
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				out.Field(i).Set(copyAcyclic(v.Field(i), onPath))
			}
		}
		return out
	}
	return v
}
