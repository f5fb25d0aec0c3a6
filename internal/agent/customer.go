package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evergreenhq/evergreen/internal/gemini"
	"github.com/evergreenhq/evergreen/internal/storage"
)

// Customer tool kinds.
const (
	KindAddCustomer    Kind = "add_customer"
	KindGetCustomer    Kind = "get_customer"
	KindListCustomers  Kind = "list_customers"
	KindUpdateCustomer Kind = "update_customer"
	KindDeleteCustomer Kind = "delete_customer"
)

const customerSystemPrompt = `You are a customer management assistant. Your role is to help users manage their customer database, including adding, viewing, updating, and deleting customers.

You have access to the following tools:
- add_customer: Add a new customer
- get_customer: Get customer details by ID or name
- list_customers: List all customers
- update_customer: Update customer details
- delete_customer: Delete a customer

Customers have the following attributes:
- name: Unique customer name
- description: Description of the customer
- products_used: Comma-separated list of Microsoft 365 products they use
- priority: low, medium, or high
- notes: Additional notes

Help users manage their customer data efficiently. Confirm actions before making changes when appropriate.`

// NewCustomerAgent builds the conversation loop for customer management.
// Its dispatcher handlers are the sole writers of Customer records.
func NewCustomerAgent(start ChatStarter, store *storage.Store, maxTurns int, logger *slog.Logger) *Agent {
	return newAgent("customer",
		func() ChatSession { return start(customerSystemPrompt, CustomerTools()) },
		newCustomerDispatcher(store),
		maxTurns, logger)
}

// CustomerTools declares the customer domain's tool set for the model. It
// stays in lock-step with the dispatcher built by newCustomerDispatcher.
func CustomerTools() []gemini.Tool {
	return []gemini.Tool{{FunctionDeclarations: []gemini.FunctionDeclaration{
		{
			Name:        string(KindAddCustomer),
			Description: "Add a new customer to the database with their M365 product usage info.",
			Parameters: objectSchema([]string{"name", "description", "products_used"}, map[string]*gemini.Schema{
				"name":          stringParam("Customer name (unique)"),
				"description":   stringParam("Description of the customer"),
				"products_used": stringParam("Comma-separated M365 products"),
				"priority":      stringParam("Priority: low, medium, or high"),
				"notes":         stringParam("Additional notes"),
			}),
		},
		{
			Name:        string(KindGetCustomer),
			Description: "Get customer details by ID or name.",
			Parameters: objectSchema(nil, map[string]*gemini.Schema{
				"customer_id":   intParam("Customer ID"),
				"customer_name": stringParam("Customer name (partial match)"),
			}),
		},
		{
			Name:        string(KindListCustomers),
			Description: "List all customers in the database.",
			Parameters:  objectSchema(nil, map[string]*gemini.Schema{}),
		},
		{
			Name:        string(KindUpdateCustomer),
			Description: "Update a customer's details.",
			Parameters: objectSchema([]string{"customer_id"}, map[string]*gemini.Schema{
				"customer_id":   intParam("Customer ID to update"),
				"name":          stringParam("New name"),
				"description":   stringParam("New description"),
				"products_used": stringParam("New products list"),
				"priority":      stringParam("New priority"),
				"notes":         stringParam("New notes"),
			}),
		},
		{
			Name:        string(KindDeleteCustomer),
			Description: "Delete a customer from the database.",
			Parameters: objectSchema([]string{"customer_id"}, map[string]*gemini.Schema{
				"customer_id": intParam("Customer ID to delete"),
			}),
		},
	}}}
}

func newCustomerDispatcher(store *storage.Store) *Dispatcher {
	return NewDispatcher(map[Kind]Handler{
		KindAddCustomer:    addCustomerHandler(store),
		KindGetCustomer:    getCustomerHandler(store),
		KindListCustomers:  listCustomersHandler(store),
		KindUpdateCustomer: updateCustomerHandler(store),
		KindDeleteCustomer: deleteCustomerHandler(store),
	})
}

func validPriority(p string) bool {
	switch p {
	case storage.PriorityLow, storage.PriorityMedium, storage.PriorityHigh:
		return true
	}
	return false
}

func addCustomerHandler(store *storage.Store) Handler {
	return func(ctx context.Context, args Args) string {
		c := storage.Customer{
			Name:         args.String("name"),
			Description:  args.String("description"),
			ProductsUsed: args.String("products_used"),
			Priority:     args.String("priority"),
			Notes:        args.String("notes"),
		}
		if c.Name == "" {
			return "✗ Error adding customer: name is required"
		}
		if c.Priority == "" {
			c.Priority = storage.PriorityMedium
		}
		if !validPriority(c.Priority) {
			return fmt.Sprintf("✗ Error adding customer: invalid priority %q (use low, medium, or high)", c.Priority)
		}

		id, err := store.AddCustomer(c)
		if err != nil {
			return fmt.Sprintf("✗ Error adding customer: %v", err)
		}
		return fmt.Sprintf("✓ Customer '%s' added successfully with ID %d.", c.Name, id)
	}
}

func getCustomerHandler(store *storage.Store) Handler {
	return func(ctx context.Context, args Args) string {
		customer, err := lookupCustomer(store, args)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "Customer not found."
			}
			return fmt.Sprintf("✗ Error looking up customer: %v", err)
		}
		if customer == nil {
			return "Please provide either customer_id or customer_name."
		}

		notes := customer.Notes
		if notes == "" {
			notes = "None"
		}
		return fmt.Sprintf(`**Customer: %s**
- ID: %d
- Description: %s
- Products Used: %s
- Priority: %s
- Notes: %s`, customer.Name, customer.ID, customer.Description, customer.ProductsUsed, customer.Priority, notes)
	}
}

func listCustomersHandler(store *storage.Store) Handler {
	return func(ctx context.Context, args Args) string {
		customers, err := store.ListCustomers()
		if err != nil {
			return fmt.Sprintf("✗ Error listing customers: %v", err)
		}
		if len(customers) == 0 {
			return "No customers in the database."
		}

		lines := []string{"**Customers:**"}
		for _, c := range customers {
			lines = append(lines, fmt.Sprintf("- [%d] %s (%s priority) - Products: %s", c.ID, c.Name, c.Priority, c.ProductsUsed))
		}
		return strings.Join(lines, "\n")
	}
}

func updateCustomerHandler(store *storage.Store) Handler {
	return func(ctx context.Context, args Args) string {
		id, ok := args.Int("customer_id")
		if !ok {
			return "✗ customer_id is required."
		}

		var u storage.CustomerUpdate
		set := func(key string, dst **string) {
			if v := args.String(key); v != "" {
				*dst = &v
			}
		}
		set("name", &u.Name)
		set("description", &u.Description)
		set("products_used", &u.ProductsUsed)
		set("priority", &u.Priority)
		set("notes", &u.Notes)

		if u.Name == nil && u.Description == nil && u.ProductsUsed == nil && u.Priority == nil && u.Notes == nil {
			return "No updates provided."
		}
		if u.Priority != nil && !validPriority(*u.Priority) {
			return fmt.Sprintf("✗ Invalid priority %q (use low, medium, or high).", *u.Priority)
		}

		if err := store.UpdateCustomer(id, u); err != nil {
			return fmt.Sprintf("✗ Customer %d not found or update failed.", id)
		}
		return fmt.Sprintf("✓ Customer %d updated successfully.", id)
	}
}

func deleteCustomerHandler(store *storage.Store) Handler {
	return func(ctx context.Context, args Args) string {
		id, ok := args.Int("customer_id")
		if !ok {
			return "✗ customer_id is required."
		}
		if err := store.DeleteCustomer(id); err != nil {
			return fmt.Sprintf("✗ Customer %d not found.", id)
		}
		return fmt.Sprintf("✓ Customer %d deleted successfully.", id)
	}
}

// lookupCustomer resolves a customer by customer_id or customer_name.
// A nil customer with nil error means neither argument was provided.
func lookupCustomer(store *storage.Store, args Args) (*storage.Customer, error) {
	if id, ok := args.Int("customer_id"); ok {
		c, err := store.GetCustomer(id)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	if name := args.String("customer_name"); name != "" {
		c, err := store.GetCustomerByName(name)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	return nil, nil
}
