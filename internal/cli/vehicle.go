package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/service"
)

// Vehicle command flags
var (
	vehicleCustomerID int64
	vehicleMake       string
	vehicleModel      string
	vehicleYear       int
	vehiclePlate      string
)

func init() {
	vehicleAddCmd.Flags().Int64Var(&vehicleCustomerID, "customer", 0, "Owning customer id (required)")
	vehicleAddCmd.Flags().StringVar(&vehicleMake, "make", "", "Vehicle make (required)")
	vehicleAddCmd.Flags().StringVar(&vehicleModel, "model", "", "Vehicle model (required)")
	vehicleAddCmd.Flags().IntVar(&vehicleYear, "year", 0, "Model year")
	vehicleAddCmd.Flags().StringVar(&vehiclePlate, "plate", "", "License plate")
	vehicleAddCmd.MarkFlagRequired("customer")
	vehicleAddCmd.MarkFlagRequired("make")
	vehicleAddCmd.MarkFlagRequired("model")

	vehicleCmd.AddCommand(vehicleAddCmd)
	rootCmd.AddCommand(vehicleCmd)
}

var vehicleCmd = &cobra.Command{
	Use:   "vehicle",
	Short: "Vehicle management commands",
}

var vehicleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vehicle for a customer",
	Long: `Add a vehicle for an existing customer in the acting shop.

Example:
  ratchet vehicle add --customer 3 --make Honda --model Civic --year 2019 -u mgr-1 -r manager -s 1`,
	Args: cobra.NoArgs,
	RunE: runVehicleAdd,
}

func runVehicleAdd(cmd *cobra.Command, args []string) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	vehicle, err := newService(database).CreateVehicle(context.Background(), actor, service.VehicleInput{
		CustomerID: vehicleCustomerID,
		Make:       vehicleMake,
		Model:      vehicleModel,
		Year:       vehicleYear,
		Plate:      vehiclePlate,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(vehicle, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Created vehicle %d: %s", vehicle.ID, vehicle.Label())
	return nil
}
