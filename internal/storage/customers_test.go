package storage

import (
	"errors"
	"testing"
)

func TestAddGetCustomer(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddCustomer(Customer{
		Name:         "Contoso",
		Description:  "Manufacturing conglomerate",
		ProductsUsed: "Teams, SharePoint",
		Priority:     PriorityHigh,
		Notes:        "EA renewal in Q3",
	})
	if err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero customer ID")
	}

	got, err := s.GetCustomer(id)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.Name != "Contoso" {
		t.Errorf("Name = %q, want Contoso", got.Name)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want %q", got.Priority, PriorityHigh)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestAddCustomerDefaultsPriority(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddCustomer(Customer{Name: "Fabrikam"})
	if err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	got, err := s.GetCustomer(id)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want %q", got.Priority, PriorityMedium)
	}
}

// TestAddCustomerDuplicateName verifies a duplicate insert is rejected with
// ErrDuplicateName and the table keeps exactly one row for the name.
func TestAddCustomerDuplicateName(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.AddCustomer(Customer{Name: "Contoso"}); err != nil {
		t.Fatalf("first AddCustomer: %v", err)
	}
	_, err := s.AddCustomer(Customer{Name: "Contoso", Description: "second attempt"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("second AddCustomer error = %v, want ErrDuplicateName", err)
	}

	count, err := s.CountCustomers()
	if err != nil {
		t.Fatalf("CountCustomers: %v", err)
	}
	if count != 1 {
		t.Errorf("customer count = %d, want 1", count)
	}
}

func TestGetCustomerByNamePartialMatch(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.AddCustomer(Customer{Name: "Contoso Ltd"}); err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}

	tests := []struct {
		query   string
		wantErr error
	}{
		{"contoso", nil},
		{"Ltd", nil},
		{"Contoso Ltd", nil},
		{"Northwind", ErrNotFound},
	}
	for _, tt := range tests {
		got, err := s.GetCustomerByName(tt.query)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("GetCustomerByName(%q) error = %v, want %v", tt.query, err, tt.wantErr)
			continue
		}
		if tt.wantErr == nil && got.Name != "Contoso Ltd" {
			t.Errorf("GetCustomerByName(%q) = %q, want Contoso Ltd", tt.query, got.Name)
		}
	}
}

func TestListCustomersOrderedByName(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"Northwind", "Adventure Works", "Contoso"} {
		if _, err := s.AddCustomer(Customer{Name: name}); err != nil {
			t.Fatalf("AddCustomer(%q): %v", name, err)
		}
	}

	customers, err := s.ListCustomers()
	if err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	want := []string{"Adventure Works", "Contoso", "Northwind"}
	if len(customers) != len(want) {
		t.Fatalf("got %d customers, want %d", len(customers), len(want))
	}
	for i, c := range customers {
		if c.Name != want[i] {
			t.Errorf("customer %d = %q, want %q", i, c.Name, want[i])
		}
	}
}

func TestUpdateCustomerPartial(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddCustomer(Customer{Name: "Contoso", Description: "original", Priority: PriorityLow})
	if err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}

	newPriority := PriorityHigh
	if err := s.UpdateCustomer(id, CustomerUpdate{Priority: &newPriority}); err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}

	got, err := s.GetCustomer(id)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want %q", got.Priority, PriorityHigh)
	}
	if got.Description != "original" {
		t.Errorf("Description = %q, untouched fields must survive a partial update", got.Description)
	}
}

func TestUpdateCustomerNotFound(t *testing.T) {
	s := openTestStore(t)

	name := "Ghost"
	err := s.UpdateCustomer(9999, CustomerUpdate{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateCustomer error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCustomer(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AddCustomer(Customer{Name: "Contoso"})
	if err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	if err := s.DeleteCustomer(id); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
	if _, err := s.GetCustomer(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCustomer after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteCustomer(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteCustomer error = %v, want ErrNotFound", err)
	}
}
