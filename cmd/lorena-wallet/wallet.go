package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorena-ssi/wallet-fs/pkg/security"
)

var (
	initMatrixUser string
	initMatrixPass bool
	initPerson     []string

	deleteForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMatrixUser, "matrix-user", "", "Service account user stored in the identity")
	initCmd.Flags().BoolVar(&initMatrixPass, "matrix-pass", false, "Prompt for the service account password")
	initCmd.Flags().StringArrayVar(&initPerson, "person", nil, "Profile attribute (name=value, can be repeated)")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

// initCmd creates a wallet by locking an empty one at a new location.
var initCmd = &cobra.Command{
	Use:   "init NAME",
	Short: "Creates a new wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := openWallet(args[0])
		if err != nil {
			return err
		}
		if w.Exists(ctx) {
			return fmt.Errorf("wallet %q already exists at %s", w.Name(), w.Location())
		}

		person, err := parseAssignments(initPerson)
		if err != nil {
			return err
		}
		id := w.Identity()
		id.MatrixUser = initMatrixUser
		for k, v := range person {
			id.Person[k] = v
		}
		if initMatrixPass {
			pass, err := readPassword("Enter service account password: ")
			if err != nil {
				return err
			}
			id.MatrixPass = pass
		}
		w.SetIdentity(id)

		password, err := readNewPassword()
		if err != nil {
			return err
		}
		report := security.CheckPassword(password)
		fmt.Fprintf(cmd.ErrOrStderr(), "Password strength: %s\n", report.Strength)
		for _, warning := range report.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
		}
		if err := lockWallet(ctx, w, password); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wallet '%s' initialized at %s\n", w.Name(), w.Location())
		return nil
	},
}

// existsCmd reports whether a wallet has persisted state.
var existsCmd = &cobra.Command{
	Use:   "exists NAME",
	Short: "Reports whether a wallet exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWallet(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.Exists(cmd.Context()))
		return nil
	},
}

// unlockCmd checks a password against a wallet.
var unlockCmd = &cobra.Command{
	Use:   "unlock NAME",
	Short: "Verifies the wallet password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _, err := unlockWallet(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wallet '%s' unlocked successfully\n", w.Name())
		return nil
	},
}

// walletInfo is the printable summary of a wallet.
type walletInfo struct {
	Name        string         `json:"name"`
	Location    string         `json:"location"`
	MatrixUser  string         `json:"matrixUser,omitempty"`
	Person      map[string]any `json:"person,omitempty"`
	Collections map[string]int `json:"collections"`
}

// infoCmd prints the identity and collection sizes. Secrets are not shown.
var infoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Shows the wallet identity and collections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _, err := unlockWallet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		id := w.Identity()
		info := walletInfo{
			Name:        w.Name(),
			Location:    w.Location(),
			MatrixUser:  id.MatrixUser,
			Person:      id.Person,
			Collections: make(map[string]int),
		}
		for _, c := range w.Collections() {
			info.Collections[c] = len(w.Collection(c))
		}
		return printJSON(cmd, info)
	},
}

// deleteCmd erases a wallet's persisted state.
var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Deletes a wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWallet(args[0])
		if err != nil {
			return err
		}

		if !deleteForce {
			fmt.Fprintf(cmd.ErrOrStderr(), "Delete wallet '%s' at %s? This cannot be undone [y/N]: ", w.Name(), w.Location())
			answer, err := readLine(stdin)
			if err != nil {
				return err
			}
			if !confirmed(answer) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}

		if !w.Delete(cmd.Context()) {
			return errors.New("failed to delete wallet")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wallet '%s' deleted\n", w.Name())
		return nil
	},
}

func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out := bufio.NewWriter(cmd.OutOrStdout())
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return out.Flush()
}
