package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/service"
)

// Customer command flags
var (
	customerFirstName string
	customerLastName  string
	customerPhone     string
	customerEmail     string
)

func init() {
	customerAddCmd.Flags().StringVar(&customerFirstName, "first", "", "First name")
	customerAddCmd.Flags().StringVar(&customerLastName, "last", "", "Last name")
	customerAddCmd.Flags().StringVar(&customerPhone, "phone", "", "Phone number (needed for report SMS delivery)")
	customerAddCmd.Flags().StringVar(&customerEmail, "email", "", "Email address")

	customerCmd.AddCommand(customerAddCmd)
	rootCmd.AddCommand(customerCmd)
}

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Customer management commands",
}

var customerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a customer to the acting shop",
	Long: `Add a customer to the acting shop.

A customer without a phone number cannot receive inspection reports by SMS;
sending to such a customer is blocked at the send step.

Example:
  ratchet customer add --first Pat --last Doe --phone +15555550100 -u mgr-1 -r manager -s 1`,
	Args: cobra.NoArgs,
	RunE: runCustomerAdd,
}

func runCustomerAdd(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	customer, err := newService(database).CreateCustomer(context.Background(), actor, service.CustomerInput{
		FirstName: customerFirstName,
		LastName:  customerLastName,
		Phone:     customerPhone,
		Email:     customerEmail,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(customer, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Created customer %d: %s", customer.ID, customer.FullName())
	if !customer.HasPhone() {
		OutputLine("Note: no phone number on file; SMS delivery will be blocked")
	}
	return nil
}
