package cli

import (
	"fmt"

	"github.com/fahmaliyi/passvault/generator"
	"github.com/fahmaliyi/passvault/vault"
)

// add handles: add SERVICE USERNAME [PASSWORD [MASTER_KEY]].
func (a *App) add(args []string) (int, error) {
	if len(args) < 2 || len(args) > 4 {
		return a.invalid()
	}
	service, username := args[0], args[1]
	if service == "" || username == "" {
		return a.invalid()
	}

	var password string
	switch {
	case len(args) < 3:
		pw, err := a.readSecret("Password: ", false)
		if err != nil {
			return ExitError, err
		}
		password = pw
	case args[2] == "-":
		pw, err := generator.Password(a.Config.Generator.Length, a.Config.Generator.Special)
		if err != nil {
			return ExitError, err
		}
		password = pw
		fmt.Fprintf(a.out, "Generated password: %s\n", pw)
	default:
		password = args[2]
	}

	mk, err := a.masterKey(args, 3)
	if err != nil {
		return ExitError, err
	}

	res, err := a.Vault.AddPassword(a.path(), service, username, password, mk)
	if err != nil {
		return ExitError, err
	}
	switch res {
	case vault.AddCreated:
		fmt.Fprintln(a.out, "Password added.")
	case vault.AddUpdated:
		fmt.Fprintln(a.out, "Updating password")
	case vault.AddUnchanged:
		fmt.Fprintln(a.out, "The new password is the same as the old password.")
	case vault.AddRejected:
		fmt.Fprintln(a.out, "Service already exists with a different username.")
		return ExitRejected, nil
	}
	return ExitOK, nil
}
