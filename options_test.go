// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gcomp

import "testing"

func TestOptionsDefaultsAndHas(t *testing.T) {
	o := NewOptions()
	if o.Has("deflate.level") {
		t.Fatal("Has should be false before Set")
	}
	if got := o.Int64("deflate.level", 6); got != 6 {
		t.Fatalf("Int64 default = %d, want 6", got)
	}

	o.SetInt64("deflate.level", 0)
	if !o.Has("deflate.level") {
		t.Fatal("Has should be true after explicit zero Set")
	}
	if got := o.Int64("deflate.level", 6); got != 0 {
		t.Fatalf("Int64 = %d, want explicit 0", got)
	}
}

func TestOptionSchemaValidate(t *testing.T) {
	schema := OptionSchema{Specs: []OptionSpec{
		{Key: "a", Type: OptInt64},
		{Key: "b", Type: OptString},
	}}

	ok := NewOptions().SetInt64("a", 1).SetString("b", "x")
	if err := schema.Validate(ok); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	wrongType := NewOptions().SetString("a", "not an int")
	if err := schema.Validate(wrongType); err == nil {
		t.Fatal("expected error for wrong type")
	}

	unknown := NewOptions().SetBool("c", true)
	if err := schema.Validate(unknown); err == nil {
		t.Fatal("expected error for unrecognized key")
	}
}
