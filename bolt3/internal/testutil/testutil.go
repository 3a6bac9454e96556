/*
 * Copyright (c) "Neo4j"
 * Neo4j Sweden AB [https://neo4j.com]
 *
 * This file is part of Neo4j.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Package testutil holds the small, hand-rolled assertion helpers the
// bolt3 package's own tests use, in place of a general-purpose
// assertion library. It stays free of any import on the bolt3 package
// itself (tests live in package bolt3, so a testutil->bolt3 import
// would be cyclic) - AssertErrorCode below reaches a typed error's
// Code field through reflection for exactly that reason, rather than
// taking a concrete *bolt3.FailureError parameter.
package testutil

import (
	"reflect"
	"testing"
)

func AssertNil(t *testing.T, v interface{}) {
	t.Helper()
	if !isNil(v) {
		t.Fatalf("expected nil (or default value), got %+v", v)
	}
}

func AssertEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	if reflect.TypeOf(a).Kind() == reflect.Slice && reflect.TypeOf(b).Kind() == reflect.Slice {
		assertSliceEquals(t, a, b)
		return
	}
	convertedA := a
	if a != nil && b != nil && reflect.TypeOf(a).ConvertibleTo(reflect.TypeOf(b)) {
		convertedA = reflect.ValueOf(a).Convert(reflect.TypeOf(b)).Interface()
	}
	if !reflect.DeepEqual(convertedA, b) {
		t.Fatalf("expected %+v to equal %+v, but did not", a, b)
	}
}

func assertSliceEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	valueA := reflect.ValueOf(a)
	valueB := reflect.ValueOf(b)
	lengthA := valueA.Len()
	if lengthA != valueB.Len() {
		t.Fatalf("expected %+v to equal %+v, but did not", a, b)
	}
	for i := 0; i < lengthA; i++ {
		AssertEquals(t, valueA.Index(i).Interface(), valueB.Index(i).Interface())
	}
}

// AssertErrorCode asserts err is non-nil and, once unwrapped to a type
// carrying a string "Code" field (bolt3's *FailureError shape), that
// the field equals code. It fails with a message naming what it found
// instead if err unwraps to something without a Code field at all.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error with code %q, got nil", code)
	}
	v := reflect.ValueOf(err)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		field := v.Elem().FieldByName("Code")
		if field.IsValid() && field.Kind() == reflect.String {
			if got := field.String(); got != code {
				t.Fatalf("expected error code %q, got %q (%v)", code, got, err)
			}
			return
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := v.Interface().(unwrapper)
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil {
			break
		}
		v = reflect.ValueOf(next)
	}
	t.Fatalf("error %v (%T) has no string Code field to compare against %q", err, err, code)
}

func AssertTrue(t *testing.T, b bool) {
	t.Helper()
	if !b {
		t.Fatalf("expected true but was false")
	}
}

func AssertFalse(t *testing.T, b bool) {
	t.Helper()
	if b {
		t.Fatalf("expected false but was true")
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error but got none")
	}
}

func AssertMapHas(t *testing.T, m map[string]interface{}, k string, v interface{}) {
	t.Helper()
	value, found := m[k]
	if !found {
		t.Fatalf("map %v does not have key %s", m, k)
	}
	if !reflect.DeepEqual(v, value) {
		t.Fatalf("map %v value %v at key %s does not equal %v", m, value, k, v)
	}
}

// from https://github.com/onsi/gomega
func isNil(a interface{}) bool {
	if a == nil {
		return true
	}
	switch reflect.TypeOf(a).Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return reflect.ValueOf(a).IsNil()
	}
	return false
}
