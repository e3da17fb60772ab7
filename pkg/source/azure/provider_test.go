package azure

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/azsync/azsync/pkg/source"
)

func testVMs() []*source.ComputeInstance {
	return []*source.ComputeInstance{
		{ID: "/subscriptions/s/virtualMachines/Web-01", Name: "web-01", Kind: source.InstanceKindVM},
		{ID: "/subscriptions/s/virtualMachines/db-01", Name: "db-01", Kind: source.InstanceKindVM},
	}
}

func testNICs() []nicRecord {
	return []nicRecord{
		{
			iface: source.Interface{ID: "/subscriptions/s/networkInterfaces/web-01-nic", Name: "web-01-nic"},
			// Azure reports the VM reference with inconsistent casing.
			vmID: "/subscriptions/s/virtualmachines/web-01",
			name: "web-01-nic",
		},
		{
			iface:    source.Interface{ID: "/subscriptions/s/networkInterfaces/orphan-nic", Name: "orphan-nic"},
			name:     "orphan-nic",
			location: "westeurope",
		},
	}
}

func TestAssembleInstancesAttachesByVMID(t *testing.T) {
	out := assembleInstances(testVMs(), testNICs())

	if len(out) != 3 {
		t.Fatalf("got %d instances, want 2 VMs + 1 standalone NIC", len(out))
	}
	if len(out[0].Interfaces) != 1 || out[0].Interfaces[0].Name != "web-01-nic" {
		t.Errorf("NIC not attached to its VM: %+v", out[0])
	}
	if len(out[1].Interfaces) != 0 {
		t.Errorf("db-01 picked up an interface: %+v", out[1])
	}
	standalone := out[2]
	if standalone.Kind != source.InstanceKindNIC || standalone.Name != "orphan-nic" {
		t.Errorf("orphan NIC not inventoried standalone: %+v", standalone)
	}
	if standalone.Location != "westeurope" {
		t.Errorf("standalone NIC location = %q", standalone.Location)
	}
}

func TestAssembleInstancesPreservesDiscoveryOrder(t *testing.T) {
	first := assembleInstances(testVMs(), testNICs())

	for i := 0; i < 50; i++ {
		again := assembleInstances(testVMs(), testNICs())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("instance order changed between identical runs:\nfirst: %+v\nagain: %+v", first, again)
		}
	}

	// VMs come out in enumeration order, standalone NICs after them.
	wantIDs := []string{
		"/subscriptions/s/virtualMachines/Web-01",
		"/subscriptions/s/virtualMachines/db-01",
		"/subscriptions/s/networkInterfaces/orphan-nic",
	}
	for i, want := range wantIDs {
		if first[i].ID != want {
			t.Errorf("instance %d = %q, want %q", i, first[i].ID, want)
		}
	}
}

func TestClassifyAuthenticationFailed(t *testing.T) {
	err := classify(&azidentity.AuthenticationFailedError{})
	if !source.IsAuthError(err) {
		t.Fatalf("token acquisition failure not classified as auth: %v", err)
	}
}

func TestClassifyResponseStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		err := classify(&azcore.ResponseError{StatusCode: status})
		if !source.IsAuthError(err) {
			t.Errorf("status %d not classified as auth", status)
		}
	}

	err := classify(&azcore.ResponseError{StatusCode: http.StatusTooManyRequests})
	if source.IsAuthError(err) {
		t.Error("throttling classified as auth")
	}
}

func TestClassifySurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("listing virtual networks in sub-1: %w",
		classify(&azcore.ResponseError{StatusCode: http.StatusUnauthorized}))
	if !source.IsAuthError(wrapped) {
		t.Fatalf("auth classification lost through wrapping: %v", wrapped)
	}
}

func TestClassifyPassesOtherErrorsThrough(t *testing.T) {
	cause := errors.New("connection reset")
	if got := classify(cause); got != cause {
		t.Fatalf("plain error rewritten: %v", got)
	}
}
