package inspect_test

import (
	"testing"

	"github.com/qtilities/qtilities-go/pkg/inspect"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
)

func TestResolvePolicyName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      observer.Policy
		wantFound bool
	}{
		{"short manual", "manual", observer.ManualOwnership, true},
		{"short upper", "AUTO", observer.AutoOwnership, true},
		{"short scope", "scope", observer.ObserverScopeOwnership, true},
		{"full name", "SpecificObserverOwnership", observer.SpecificObserverOwnership, true},
		{"full lower", "ownedbysubjectownership", observer.OwnedBySubjectOwnership, true},
		{"unknown", "shared", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := inspect.ResolvePolicyName(tt.input)
			if found != tt.wantFound {
				t.Errorf("ResolvePolicyName(%q) found = %v, want %v", tt.input, found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("ResolvePolicyName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetPolicyName(t *testing.T) {
	if got := inspect.GetPolicyName(observer.ObserverScopeOwnership); got != "scope" {
		t.Errorf("GetPolicyName(scope) = %q, want scope", got)
	}
	if got := inspect.GetPolicyName(observer.Policy(99)); got != "Policy(99)" {
		t.Errorf("GetPolicyName(99) = %q, want Policy(99)", got)
	}
}

func TestResolveAccessModeName(t *testing.T) {
	tests := []struct {
		input     string
		want      observer.AccessMode
		wantFound bool
	}{
		{"full", observer.FullAccess, true},
		{"ReadOnly", observer.ReadOnlyAccess, true},
		{"LockedAccess", observer.LockedAccess, true},
		{"write", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, found := inspect.ResolveAccessModeName(tt.input)
			if found != tt.wantFound || got != tt.want {
				t.Errorf("ResolveAccessModeName(%q) = %v, %v; want %v, %v", tt.input, got, found, tt.want, tt.wantFound)
			}
		})
	}

	if got := inspect.GetAccessModeName(observer.ReadOnlyAccess); got != "readonly" {
		t.Errorf("GetAccessModeName(readonly) = %q", got)
	}
}

func TestResolveKindName(t *testing.T) {
	tests := []struct {
		input     string
		want      property.Kind
		wantFound bool
	}{
		{"string", property.KindString, true},
		{"INT", property.KindInt, true},
		{"Reference", property.KindReference, true},
		{"invalid", property.KindInvalid, false},
		{"float", property.KindInvalid, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, found := inspect.ResolveKindName(tt.input)
			if found != tt.wantFound || got != tt.want {
				t.Errorf("ResolveKindName(%q) = %v, %v; want %v, %v", tt.input, got, found, tt.want, tt.wantFound)
			}
		})
	}
}
