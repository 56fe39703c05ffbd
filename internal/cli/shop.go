package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spannerworks/ratchet/internal/db"
)

func init() {
	shopCmd.AddCommand(shopCreateCmd)
	shopCmd.AddCommand(shopListCmd)
	rootCmd.AddCommand(shopCmd)
}

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Shop management commands",
	Long:  `Manage shops. Every customer, vehicle and inspection belongs to one shop.`,
}

var shopCreateCmd = &cobra.Command{
	Use:   "create <NAME>",
	Short: "Create a new shop",
	Long: `Create a new shop.

Example:
  ratchet shop create "Downtown Auto"`,
	Args: cobra.ExactArgs(1),
	RunE: runShopCreate,
}

func runShopCreate(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	shop, err := newService(database).CreateShop(context.Background(), args[0])
	if err != nil {
		return err
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(shop, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	OutputLine("Created shop %d: %s", shop.ID, shop.Name)
	return nil
}

var shopListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all shops",
	Args:  cobra.NoArgs,
	RunE:  runShopList,
}

func runShopList(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	shops, err := db.NewShopRepo(database.DB).List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list shops: %w", err)
	}

	if IsJSON() {
		data, _ := json.MarshalIndent(shops, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(shops) == 0 {
		OutputLine("No shops found.")
		return nil
	}

	fmt.Printf("%-6s %s\n", "ID", "NAME")
	fmt.Println(strings.Repeat("-", 40))
	for _, shop := range shops {
		fmt.Printf("%-6d %s\n", shop.ID, shop.Name)
	}

	return nil
}
